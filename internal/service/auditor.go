package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"inpatient-capacity-backend/internal/metrics"
	"inpatient-capacity-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const auditWriteTimeout = 5 * time.Second

// Auditor records mutations to the audit sink on a best-effort basis.
// A failed write is logged and counted, never returned to the caller.
type Auditor struct {
	sink    AuditSink
	async   bool
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewAuditor(sink AuditSink, async bool, m *metrics.Metrics) *Auditor {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Auditor{sink: sink, async: async, metrics: m}
}

// Record writes one audit entry. In async mode it returns immediately.
func (a *Auditor) Record(ctx context.Context, actorID uint, action, table string, recordID uint, oldValue, newValue interface{}) {
	if a == nil || a.sink == nil {
		return
	}

	entry := &models.AuditLog{
		UserID:   actorPtr(actorID),
		Action:   action,
		Table:    table,
		RecordID: recordID,
		OldValue: toJSON(oldValue),
		NewValue: toJSON(newValue),
	}

	ctx = context.WithoutCancel(ctx)
	if !a.async {
		a.write(ctx, entry)
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.write(ctx, entry)
	}()
}

// Wait blocks until every pending asynchronous write has finished
func (a *Auditor) Wait() {
	a.wg.Wait()
}

func (a *Auditor) write(ctx context.Context, entry *models.AuditLog) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(entry, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	if err := a.sink.CreateAuditLog(ctx, entry); err != nil {
		a.fail(entry, err)
	}
}

func (a *Auditor) fail(entry *models.AuditLog, err error) {
	a.metrics.AuditFailures.Inc()
	log.Error().Err(err).
		Str("action", entry.Action).
		Str("table", entry.Table).
		Uint("record_id", entry.RecordID).
		Msg("failed to write audit log")
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("audit value is not serialisable")
		return nil
	}
	return datatypes.JSON(b)
}
