package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/stride/pkg/api"
	"github.com/kode4food/stride/pkg/log"
)

type errStub string

func TestSubmissionID(t *testing.T) {
	attr := log.SubmissionID(api.SubmissionID("SUB-001"))
	assertAttrEqual(t, attr, "submission_id", "SUB-001")
}

func TestStep(t *testing.T) {
	attr := log.Step(api.StepNumber(3))
	assert.Equal(t, "step", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.StatusInProgress)
	assertAttrEqual(t, attr, "status", "in_progress")
}

func TestOp(t *testing.T) {
	attr := log.Op("navigate_to_step")
	assertAttrEqual(t, attr, "op", "navigate_to_step")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
