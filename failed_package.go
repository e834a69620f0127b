package dgbatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FailedPackage is a stored copy of a package whose process function failed.
type FailedPackage struct {
	ID        string                 `json:"id"`
	Batch     string                 `json:"batch"`
	RunID     string                 `json:"run_id"`
	Index     int                    `json:"index"`
	Offset    int                    `json:"offset"`
	Size      int                    `json:"size"`
	Items     json.RawMessage        `json:"items"`
	Error     string                 `json:"error"`
	Attempts  int                    `json:"attempts"`
	FailedAt  time.Time              `json:"failed_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewFailedPackage captures pkg and its failure. The items are stored as JSON
// so they can be decoded again by DecodeItems.
func NewFailedPackage[T any](batch, runID string, pkg Package[T], err error) (*FailedPackage, error) {
	items, marshalErr := json.Marshal(pkg.Items)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to encode package %d items: %w", pkg.Index, marshalErr)
	}

	now := time.Now()
	fp := &FailedPackage{
		ID:        uuid.New().String(),
		Batch:     batch,
		RunID:     runID,
		Index:     pkg.Index,
		Offset:    pkg.Offset,
		Size:      pkg.Len(),
		Items:     items,
		Attempts:  1,
		FailedAt:  now,
		UpdatedAt: now,
		Metadata:  make(map[string]interface{}),
	}
	if err != nil {
		fp.Error = err.Error()
	}
	return fp, nil
}

// DecodeItems decodes the stored items of fp.
func DecodeItems[T any](fp *FailedPackage) ([]T, error) {
	var items []T
	if err := json.Unmarshal(fp.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items of package %s: %w", fp.ID, err)
	}
	return items, nil
}

// PackageOf rebuilds the typed package stored in fp.
func PackageOf[T any](fp *FailedPackage) (Package[T], error) {
	items, err := DecodeItems[T](fp)
	if err != nil {
		return Package[T]{}, err
	}
	return Package[T]{Index: fp.Index, Offset: fp.Offset, Items: items}, nil
}

// MarkAttempt records another failed attempt.
func (fp *FailedPackage) MarkAttempt(err error) {
	fp.Attempts++
	fp.UpdatedAt = time.Now()
	if err != nil {
		fp.Error = err.Error()
	}
}

// Info returns the package description of fp.
func (fp *FailedPackage) Info() PackageInfo {
	return PackageInfo{
		Batch:  fp.Batch,
		RunID:  fp.RunID,
		Index:  fp.Index,
		Offset: fp.Offset,
		Size:   fp.Size,
	}
}

// MarshalFailedPackage marshals the failed package to JSON.
func MarshalFailedPackage(fp *FailedPackage) ([]byte, error) {
	return json.Marshal(fp)
}

// UnmarshalFailedPackage unmarshals a failed package from JSON.
func UnmarshalFailedPackage(data []byte) (*FailedPackage, error) {
	var fp FailedPackage
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}
