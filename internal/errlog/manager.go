// Package errlog keeps a ledger of source documents whose last run did not
// finish cleanly, so they can be found and re-run.
package errlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ErrorStage 错误阶段枚举
type ErrorStage string

const (
	StageExtract     ErrorStage = "extract"     // 结构抽取
	StagePersist     ErrorStage = "persist"     // 中间文件或检查点写入
	StageTranslation ErrorStage = "translation" // 部分段落保留原文
	StageRender      ErrorStage = "render"      // PDF 渲染
)

// ErrorRecord 错误记录
type ErrorRecord struct {
	Source      string     `json:"source"`                // 源文档路径
	Stage       ErrorStage `json:"stage"`                 // 出错阶段
	Code        string     `json:"code,omitempty"`        // AppError 代码
	ErrorMsg    string     `json:"error_msg"`             // 错误信息
	Passthrough int        `json:"passthrough,omitempty"` // 保留原文的段落数
	Timestamp   time.Time  `json:"timestamp"`             // 最近一次失败时间
	RetryCount  int        `json:"retry_count"`           // 之后又失败的次数
}

// ErrorManager 错误管理器
type ErrorManager struct {
	fs     afero.Fs
	path   string
	mu     sync.RWMutex
	errors map[string]*ErrorRecord // key: Source
}

// NewErrorManager opens the ledger at path, loading existing records
func NewErrorManager(fs afero.Fs, path string) (*ErrorManager, error) {
	em := &ErrorManager{
		fs:     fs,
		path:   path,
		errors: make(map[string]*ErrorRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// RecordError stores a failure for source. A source that failed before keeps
// its history and has its retry count bumped.
func (em *ErrorManager) RecordError(rec ErrorRecord) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if existing, ok := em.errors[rec.Source]; ok {
		rec.RetryCount = existing.RetryCount + 1
	}
	em.errors[rec.Source] = &rec
	return em.save()
}

// RemoveError forgets source after a clean run
func (em *ErrorManager) RemoveError(source string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[source]; !ok {
		return nil
	}
	delete(em.errors, source)
	return em.save()
}

// GetError returns a copy of the record for source
func (em *ErrorManager) GetError(source string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[source]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// ListErrors returns copies of every record, oldest first
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sortRecords(records)
	return records
}

func sortRecords(records []*ErrorRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].Source < records[j].Source
	})
}

func (em *ErrorManager) load() error {
	data, err := afero.ReadFile(em.fs, em.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read error log: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal error log: %w", err)
	}
	for _, record := range records {
		em.errors[record.Source] = record
	}
	return nil
}

func (em *ErrorManager) save() error {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sortRecords(records)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal error log: %w", err)
	}
	if dir := filepath.Dir(em.path); dir != "." {
		if err := em.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create error log directory: %w", err)
		}
	}
	if err := afero.WriteFile(em.fs, em.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageExtract:
		return "extraction"
	case StagePersist:
		return "saving"
	case StageTranslation:
		return "translation (some paragraphs kept original text)"
	case StageRender:
		return "rendering"
	default:
		return string(stage)
	}
}
