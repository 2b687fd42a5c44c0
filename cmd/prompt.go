package cmd

import (
	"errors"

	"github.com/charmbracelet/huh"
)

// filterThreshold: type-to-filter is enabled above this many options.
const filterThreshold = 5

// errNoChoices is returned by selectIndex for an empty list.
var errNoChoices = errors.New("nothing to choose from")

func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).Run()
}

// selectIndex shows items in a huh select and returns the chosen index.
// current is preselected when in range.
func selectIndex[T any](title string, items []T, label func(T) string, current int) (int, error) {
	if len(items) == 0 {
		return -1, errNoChoices
	}
	opts := make([]huh.Option[int], len(items))
	for i, it := range items {
		opts[i] = huh.NewOption(label(it), i).Selected(i == current)
	}

	choice := current
	sel := huh.NewSelect[int]().
		Title(title).
		Options(opts...).
		Filtering(len(items) > filterThreshold).
		Value(&choice)

	if err := runForm(sel); err != nil {
		return -1, err
	}
	return choice, nil
}

// promptConfirm asks a yes/no question. Returns true for yes.
func promptConfirm(title string, defaultYes bool) (bool, error) {
	value := defaultYes
	c := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&value)

	if err := runForm(c); err != nil {
		return false, err
	}
	return value, nil
}
