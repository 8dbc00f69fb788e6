package report

// ChartSpec is a renderer-agnostic chart description handed to the client.
// Vendor groupings chart best as bars or a pie; date groupings as a line.
type ChartSpec struct {
	Type   string   `json:"type"` // bar | pie | line
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []string `json:"values"` // decimal strings, same order as Labels
}

// BuildChartSpec derives a chart from an assembled report.
func BuildChartSpec(rep Report) ChartSpec {
	spec := ChartSpec{Title: rep.Spec.Title}
	switch rep.Spec.GroupBy {
	case GroupByVendor:
		spec.Type = "bar"
	case GroupByDate:
		spec.Type = "line"
	default:
		spec.Type = "bar"
	}

	for _, g := range rep.Groups {
		if len(g.Records) == 0 && rep.Spec.GroupBy != GroupByMonth {
			continue
		}
		spec.Labels = append(spec.Labels, g.Key)
		spec.Values = append(spec.Values, g.Total.StringFixed(2))
	}
	return spec
}
