package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	auditQueueSize      = 1000
	auditExportBatchMax = 10000
)

type AuditEntry struct {
	ReaderID     *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
}

// ObjectUploader is the part of storage.MinIOClient the exporter needs.
type ObjectUploader interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
}

// AuditService writes audit rows from a buffered queue so callers never wait
// on the insert. All methods are no-ops on a nil receiver.
type AuditService struct {
	db      *gorm.DB
	storage ObjectUploader
	queue   chan models.AuditLog
	done    chan struct{}

	exportBatch int

	mu     sync.RWMutex
	closed bool
}

func NewAuditService(db *gorm.DB, storage ObjectUploader) *AuditService {
	s := &AuditService{
		db:      db,
		storage: storage,
		queue:   make(chan models.AuditLog, auditQueueSize),
		done:    make(chan struct{}),

		exportBatch: auditExportBatchMax,
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}

	row := models.AuditLog{
		ReaderID:     entry.ReaderID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// Close stops accepting entries and waits until the queue is drained.
func (s *AuditService) Close() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.db.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

// ExportOnce ships every audit row newer than the export cursor to object
// storage as one NDJSON object and advances the cursor. It returns how many
// rows were exported.
func (s *AuditService) ExportOnce(ctx context.Context) (int, error) {
	if s == nil || s.storage == nil {
		return 0, nil
	}

	var cursor models.AuditExportCursor
	err := s.db.WithContext(ctx).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cursor = models.AuditExportCursor{
			LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := s.db.WithContext(ctx).Create(&cursor).Error; err != nil {
			return 0, fmt.Errorf("create audit export cursor: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("load audit export cursor: %w", err)
	}

	// Rows still sitting in the insert queue are picked up on the next run;
	// the upper bound uses the database clock so app clock skew cannot skip them.
	// The cursor is the (created_at, id) of the last exported row, so a batch
	// that ends inside a run of equal timestamps resumes right after it.
	var logs []models.AuditLog
	if err := s.db.WithContext(ctx).
		Where("(created_at > ? OR (created_at = ? AND id > ?))", cursor.LastExportAt, cursor.LastExportAt, cursor.LastExportID).
		Where("created_at <= NOW()").
		Order("created_at ASC, id ASC").
		Limit(s.exportBatch).
		Find(&logs).Error; err != nil {
		return 0, fmt.Errorf("query audit logs: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range logs {
		if err := enc.Encode(row); err != nil {
			return 0, fmt.Errorf("encode audit log %s: %w", row.ID, err)
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("audit-logs/%s/%s.ndjson", now.Format("2006/01/02"), now.Format("15-04-05.000"))
	if err := s.storage.Upload(ctx, objectName, &buf, int64(buf.Len()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("upload %s: %w", objectName, err)
	}

	last := logs[len(logs)-1]
	if err := s.db.WithContext(ctx).Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": last.CreatedAt,
		"last_export_id": last.ID,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	}).Error; err != nil {
		return 0, fmt.Errorf("advance audit export cursor: %w", err)
	}

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
	return len(logs), nil
}

func (s *AuditService) log(readerID uuid.UUID, action, resourceType string, resourceID uuid.UUID, details map[string]interface{}) {
	if s == nil {
		return
	}
	rid := resourceID
	s.LogAsync(AuditEntry{
		ReaderID:     &readerID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   &rid,
		Details:      details,
	})
}
