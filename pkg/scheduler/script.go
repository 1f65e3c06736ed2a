package scheduler

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"
)

// Script holds the parameters of a Grid Engine job script.
type Script struct {
	// Shell is the interpreter declared with `-S`.
	Shell string
	// Name is the job name.
	Name string
	// LogsDir and ErrorsDir receive the job's stdout and stderr.
	LogsDir   string
	ErrorsDir string
	// Memory and Runtime are the h_vmem and h_rt requests.
	Memory  string
	Runtime string
	// ParallelEnv and Slots form the `-pe` request.
	ParallelEnv string
	// Mail receives a message when the job aborts. Empty disables mail.
	Mail string
	// ArrayRange makes the job an array job.
	ArrayRange string
	// HoldOn names the jobs that must finish first.
	HoldOn string
	// TaskIDVariable is appended to Command as a quoted variable expansion
	// when set.
	TaskIDVariable string
	// Command is executed by the job. Each element is shell-quoted.
	Command []string
	Slots   int
}

var scriptTemplate = template.Must(template.New("script").Funcs(template.FuncMap{
	"quote": Quote,
}).Parse(`#!{{ .Shell }}
#$ -S {{ .Shell }}
#$ -cwd
#$ -o {{ .LogsDir }}
#$ -e {{ .ErrorsDir }}
#$ -N {{ .Name }}
#$ -l h_vmem={{ .Memory }}
#$ -l h_rt={{ .Runtime }}
#$ -pe {{ .ParallelEnv }} {{ .Slots }}
{{- if .Mail }}
#$ -m a
#$ -M {{ .Mail }}
{{- end }}
{{- if .ArrayRange }}
#$ -t {{ .ArrayRange }}
{{- end }}
{{- if .HoldOn }}
#$ -hold_jid {{ .HoldOn }}
{{- end }}

export OMP_NUM_THREADS=1
ulimit -c 0

exec{{ range .Command }} {{ quote . }}{{ end }}{{ if .TaskIDVariable }} "${{ "{" }}{{ .TaskIDVariable }}{{ "}" }}"{{ end }}
`))

// Render writes the script to w.
func (s Script) Render(w io.Writer) error {
	if len(s.Command) == 0 {
		return fmt.Errorf("render script %s: no command", s.Name)
	}

	if s.Slots < 1 {
		s.Slots = 1
	}

	if err := scriptTemplate.Execute(w, s); err != nil {
		return fmt.Errorf("render script %s: %w", s.Name, err)
	}

	return nil
}

// Bytes renders the script into memory.
func (s Script) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Quote returns s quoted for a POSIX shell. Strings made only of safe
// characters are returned unchanged.
func Quote(s string) string {
	if s == "" {
		return "''"
	}

	safe := true
	for _, r := range s {
		if !isSafe(r) {
			safe = false
			break
		}
	}

	if safe {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}

	return strings.ContainsRune("-_./=:,+@%", r)
}
