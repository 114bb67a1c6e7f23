package models

// StatusDisplay describes how a request status is presented: badge
// color token, icon glyph, short label and a one-line description.
type StatusDisplay struct {
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var statusDisplays = map[RequestStatus]StatusDisplay{
	StatusOpen: {
		Color:       "blue",
		Icon:        "hourglass",
		Label:       "Pending Review",
		Description: "This request is awaiting admin action",
	},
	StatusAccepted: {
		Color:       "green",
		Icon:        "check",
		Label:       "Request Accepted",
		Description: "This pickup has been approved and points awarded",
	},
	StatusRejected: {
		Color:       "red",
		Icon:        "cross",
		Label:       "Request Rejected",
		Description: "This request has been declined",
	},
	StatusCancelled: {
		Color:       "gray",
		Icon:        "ban",
		Label:       "Request Cancelled",
		Description: "This request was withdrawn",
	},
}

// DisplayFor maps a status to its display descriptor. The mapping is
// total: unrecognized statuses fall back to the open descriptor so a
// newer backend value never renders blank.
func DisplayFor(s RequestStatus) StatusDisplay {
	if d, ok := statusDisplays[s]; ok {
		return d
	}
	return statusDisplays[StatusOpen]
}
