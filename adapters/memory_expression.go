package adapters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
)

// MemoryExpressionStore is the in-memory source of truth mapping a question
// ID to its resolved expression. One store lives for the duration of one
// interview session; writes are one-shot by design.
type MemoryExpressionStore struct {
	mu         sync.RWMutex
	byQuestion map[string]entities.QuestionExpression
	order      []string // question IDs in insertion order
}

var _ repositories.ExpressionStore = (*MemoryExpressionStore)(nil)

// NewMemoryExpressionStore creates an empty expression store
func NewMemoryExpressionStore() *MemoryExpressionStore {
	return &MemoryExpressionStore{
		byQuestion: make(map[string]entities.QuestionExpression),
		order:      make([]string, 0),
	}
}

// Put implements repositories.ExpressionStore
func (m *MemoryExpressionStore) Put(expr entities.QuestionExpression) error {
	if err := expr.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byQuestion[expr.QuestionID]; exists {
		return fmt.Errorf("question %s: %w", expr.QuestionID, repositories.ErrDuplicateExpression)
	}

	// Store a copy so later caller-side mutation cannot reach the record
	expr.Vector = expr.Vector.Clone()
	m.byQuestion[expr.QuestionID] = expr
	m.order = append(m.order, expr.QuestionID)

	return nil
}

// Get implements repositories.ExpressionStore
func (m *MemoryExpressionStore) Get(questionID string) (entities.QuestionExpression, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expr, exists := m.byQuestion[questionID]
	if !exists {
		return entities.QuestionExpression{}, false
	}

	expr.Vector = expr.Vector.Clone()
	return expr, true
}

// All implements repositories.ExpressionStore. Expressions come back in
// capture-trigger order: primarily by capture sequence, with insertion
// order as the stable fallback when sequences are equal.
func (m *MemoryExpressionStore) All() []entities.QuestionExpression {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.QuestionExpression, 0, len(m.order))
	for _, questionID := range m.order {
		expr := m.byQuestion[questionID]
		expr.Vector = expr.Vector.Clone()
		result = append(result, expr)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CaptureSeq < result[j].CaptureSeq
	})
	return result
}

// Len implements repositories.ExpressionStore
func (m *MemoryExpressionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
