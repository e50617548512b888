package timeseries

import "sort"

// Visibility tracks which regions are drawn. Every region starts visible;
// toggling flips membership of the hidden set, so the outcome depends only
// on how many times each id was toggled. A nil *Visibility shows everything.
// It is not safe for concurrent use.
type Visibility struct {
	hidden map[string]struct{}
}

func NewVisibility() *Visibility {
	return &Visibility{hidden: make(map[string]struct{})}
}

// Toggle flips region and reports whether it is now visible.
func (v *Visibility) Toggle(region string) bool {
	if v.hidden == nil {
		v.hidden = make(map[string]struct{})
	}
	if _, ok := v.hidden[region]; ok {
		delete(v.hidden, region)
		return true
	}
	v.hidden[region] = struct{}{}
	return false
}

func (v *Visibility) IsVisible(region string) bool {
	if v == nil {
		return true
	}
	_, hidden := v.hidden[region]
	return !hidden
}

// Filter returns the visible regions of ids, preserving order.
func (v *Visibility) Filter(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if v.IsVisible(id) {
			out = append(out, id)
		}
	}
	return out
}

// Hidden returns the hidden regions in sorted order.
func (v *Visibility) Hidden() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.hidden))
	for id := range v.hidden {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
