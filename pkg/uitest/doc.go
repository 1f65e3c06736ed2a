// Package uitest provides testing utilities for Bubble Tea views.
//
// [NewTestModel] accepts any model satisfying [BubbleModel], including models
// whose Update method returns the concrete type instead of [tea.Model]:
//
//	func TestView(t *testing.T) {
//	    t.Parallel()
//
//	    tm := uitest.NewTestModel(t, ui.NewModel("iris", render), uitest.Compact)
//	    uitest.WaitForText(t, tm.Output(), "folds finished")
//
//	    tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
//	    tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
//	}
//
// Output is compared after stripping ANSI sequences with [Plain].
package uitest
