package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWorkflowObserverFeedsCollectors(t *testing.T) {
	steps := WorkflowStepsTotal.WithLabelValues("process-dify", "completed")
	instances := WorkflowInstancesTotal.WithLabelValues("completed")
	beforeSteps := testutil.ToFloat64(steps)
	beforeInstances := testutil.ToFloat64(instances)

	var observer WorkflowObserver
	observer.StepFinished("process-dify", "completed", 1500*time.Millisecond)
	observer.InstanceFinished("completed")

	assert.Equal(t, beforeSteps+1, testutil.ToFloat64(steps))
	assert.Equal(t, beforeInstances+1, testutil.ToFloat64(instances))
}

func TestRecordRequestLabelsStatus(t *testing.T) {
	counter := RequestsTotal.WithLabelValues("POST", "/webhook", "403")
	before := testutil.ToFloat64(counter)

	RecordRequest("POST", "/webhook", 403, 0.002)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
