package v1beta1_test

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/api/v1beta1"
)

func newSchema(props ...string) *jsonschema.Schema {
	jss := &jsonschema.Schema{Properties: jsonschema.NewProperties()}
	for _, p := range props {
		jss.Properties.Set(p, &jsonschema.Schema{Type: "string"})
	}

	return jss
}

func TestNewTypeMeta(t *testing.T) {
	t.Parallel()

	tm := v1beta1.NewTypeMeta("Metric")
	assert.Equal(t, v1beta1.APIVersion, tm.GetAPIVersion())
	assert.Equal(t, "Metric", tm.GetKind())
}

func TestExtendSchemaWithEnums(t *testing.T) {
	t.Parallel()

	jss := newSchema("apiVersion", "kind")
	v1beta1.ExtendSchemaWithEnums(jss, []string{"v1", "v1beta1"}, []string{"Estimator"})

	apiVersion, ok := jss.Properties.Get("apiVersion")
	require.True(t, ok)
	require.Len(t, apiVersion.OneOf, 2)
	assert.Equal(t, "v1beta1", apiVersion.OneOf[1].Const)

	kind, ok := jss.Properties.Get("kind")
	require.True(t, ok)
	require.Len(t, kind.OneOf, 1)
	assert.Equal(t, "Estimator", kind.OneOf[0].Const)
	assert.Equal(t, "Kind", kind.OneOf[0].Title)
}

func TestExtendSchemaWithEnums_MissingProperty(t *testing.T) {
	t.Parallel()

	for _, props := range [][]string{{"kind"}, {"apiVersion"}} {
		assert.Panics(t, func() {
			v1beta1.ExtendSchemaWithEnums(newSchema(props...), []string{"v1"}, []string{"Estimator"})
		}, props)
	}
}

func TestTypeMeta_Check(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		tm      v1beta1.TypeMeta
		kind    string
		wantErr bool
	}{
		"matching": {
			tm:   v1beta1.NewTypeMeta("Estimator"),
			kind: "Estimator",
		},
		"wrong kind": {
			tm:      v1beta1.NewTypeMeta("Metric"),
			kind:    "Estimator",
			wantErr: true,
		},
		"wrong api version": {
			tm:      v1beta1.TypeMeta{APIVersion: "kfold.example.com/v1", Kind: "Estimator"},
			kind:    "Estimator",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tc.tm.Check(tc.kind)
			if tc.wantErr {
				require.ErrorIs(t, err, v1beta1.ErrTypeMeta)

				return
			}

			require.NoError(t, err)
		})
	}
}
