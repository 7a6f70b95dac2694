package task

import "time"

type FailedItemTask struct {
	RunID         string    `json:"run_id"`
	Kind          string    `json:"kind"`    // result kind, e.g. "categories"
	ItemID        string    `json:"item_id"` // category, product or assignment key
	Error         string    `json:"error"`
	RequestMethod string    `json:"request_method,omitempty"`
	RequestURL    string    `json:"request_url,omitempty"`
	FailedAt      time.Time `json:"failed_at"`
}

func (t *FailedItemTask) TaskType() string {
	return "FailedItemTask"
}

func (t *FailedItemTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
