package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowId_String(t *testing.T) {
	id := WorkflowId{Component: "styx", Name: "nightly-export"}
	assert.Equal(t, "styx#nightly-export", id.String())
}

func TestWorkflowConfiguration_Configured(t *testing.T) {
	assert.False(t, WorkflowConfiguration{}.Configured())

	image := "gcr.io/example/image:latest"
	assert.True(t, WorkflowConfiguration{DockerImage: &image}.Configured())
}

func TestWorkflowInstance_Equal(t *testing.T) {
	a := WorkflowInstance{WorkflowId: WorkflowId{Component: "c", Name: "n"}, Parameter: "2020-01-01"}
	b := WorkflowInstance{WorkflowId: WorkflowId{Component: "c", Name: "n"}, Parameter: "2020-01-01"}
	c := WorkflowInstance{WorkflowId: WorkflowId{Component: "c", Name: "n"}, Parameter: "2020-01-02"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "c#n#2020-01-01", a.String())
}
