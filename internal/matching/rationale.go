package matching

import "fmt"

// Label names one side of a match in a rationale.
type Label struct {
	ID    string
	Title string
}

func (l Label) String() string {
	switch {
	case l.Title != "":
		return l.Title
	case l.ID != "":
		return l.ID
	default:
		return "unknown"
	}
}

// SummarizeRationale renders the fixed review rationale for a guideline/regulation pair.
func SummarizeRationale(guideline, regulation Label) string {
	return fmt.Sprintf(
		"Guideline '%s' aligns with regulation '%s' based on thematic overlap and shared control objectives.",
		guideline, regulation,
	)
}
