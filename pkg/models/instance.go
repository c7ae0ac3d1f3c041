package models

// WorkflowInstance identifies one scheduled partition of a workflow: the
// workflow and the canonical textual rendering of the partition's aligned
// instant (its "parameter").
type WorkflowInstance struct {
	WorkflowId WorkflowId `json:"workflow_id"`
	Parameter  string     `json:"parameter" validate:"required"`
}

// Equal reports whether two instances name the same partition.
func (i WorkflowInstance) Equal(o WorkflowInstance) bool {
	return i.WorkflowId == o.WorkflowId && i.Parameter == o.Parameter
}

// String renders the canonical "component#name#parameter" key used as the
// event log's partition key and the active-instance index key.
func (i WorkflowInstance) String() string {
	return i.WorkflowId.String() + "#" + i.Parameter
}
