package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/assistant"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAssistantQuery runs one assistant chat turn.
	TaskAssistantQuery = "ledger:assistant_query"
	// TaskComplianceCheck runs a compliance review of matched rows.
	TaskComplianceCheck = "ledger:compliance_check"
	// TaskVoucherScan reports unbalanced vouchers.
	TaskVoucherScan = "ledger:voucher_scan"

	// ResultRetention keeps completed task results available for polling.
	ResultRetention = 24 * time.Hour
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// VoucherScanPayload selects the entity to scan; empty scans every entity.
type VoucherScanPayload struct {
	EntityID string `json:"entity_id"`
}

// NewAssistantQueryTask wraps a chat turn as an Asynq task.
func NewAssistantQueryTask(req assistant.ConverseRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssistantQuery, data), nil
}

// NewComplianceCheckTask wraps a compliance review as an Asynq task.
func NewComplianceCheckTask(req assistant.ComplianceRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskComplianceCheck, data), nil
}

// NewVoucherScanTask constructs the voucher balance scan task.
func NewVoucherScanTask(entityID string) (*asynq.Task, error) {
	data, err := json.Marshal(VoucherScanPayload{EntityID: entityID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVoucherScan, data), nil
}

// writeResult stores the JSON result on the task when running inside a server.
func writeResult(t *asynq.Task, v any) error {
	rw := t.ResultWriter()
	if rw == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = rw.Write(data)
	return err
}
