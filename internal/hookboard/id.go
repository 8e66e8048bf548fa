package hookboard

import "github.com/google/uuid"

// GenerateID returns a random ID with the given prefix.
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NewExecutionID derives a unique execution ID from the workflow ID and a
// random suffix, so rapid repeated triggers of one workflow never collide.
func NewExecutionID(workflowID string) string {
	return workflowID + "-" + uuid.NewString()
}
