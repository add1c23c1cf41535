package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ml-governance-service/internal/core/domain"
	"ml-governance-service/internal/testutil"
)

// anonymousRows builds n rows sharing one quasi-identifier group.
func anonymousRows(n int, group string) []domain.Row {
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.Row{
			"patient_id": fmt.Sprintf("%s-%d", group, i),
			"age":        74.0,
			"sex":        "F",
			"zip":        group + "45",
			"race":       "white",
			"notes":      "stable condition",
		}
	}
	return rows
}

func gateColumns() []string {
	return []string{"patient_id", "age", "sex", "zip", "race", "notes"}
}

func newGateForTest(t *testing.T) (*PHIGateService, *testutil.MockQuarantineStore) {
	t.Helper()
	store := new(testutil.MockQuarantineStore)
	store.On("IsQuarantined", mock.Anything, mock.Anything).Return(false, nil)
	store.On("Quarantine", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return NewPHIGateService(DefaultGateConfig(), store), store
}

func TestPHIGate_CleanBatchPasses(t *testing.T) {
	gate, _ := newGateForTest(t)

	batch := testBatch(anonymousRows(6, "681"), gateColumns()...)
	findings, err := gate.Check(context.Background(), batch)
	assert.NoError(t, err)
	assert.Empty(t, findings)
}

func TestPHIGate_DetectsStructuredIdentifiers(t *testing.T) {
	cases := []struct {
		kind  string
		value string
	}{
		{"ssn", "patient ssn 123-45-6789 on file"},
		{"phone", "call (555) 867-5309 to confirm"},
		{"email", "reach caregiver at jane.doe@example.org"},
		{"name", "seen by Dr. Smith today"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			gate, store := newGateForTest(t)

			rows := anonymousRows(6, "681")
			rows[2]["notes"] = tc.value
			batch := testBatch(rows, gateColumns()...)

			findings, err := gate.Check(context.Background(), batch)
			assert.ErrorIs(t, err, domain.ErrPHIDetected)
			require.NotEmpty(t, findings)
			assert.Equal(t, "notes", findings[0].Column)
			store.AssertCalled(t, "Quarantine", mock.Anything, batch.Snapshot.ID, "identifier scan")
		})
	}
}

// Findings must never carry the matched values.
func TestPHIGate_FindingsDoNotEchoValues(t *testing.T) {
	gate, _ := newGateForTest(t)

	rows := anonymousRows(6, "681")
	rows[0]["notes"] = "ssn 987-65-4321"
	batch := testBatch(rows, gateColumns()...)

	findings, err := gate.Check(context.Background(), batch)
	assert.ErrorIs(t, err, domain.ErrPHIDetected)

	raw, jsonErr := json.Marshal(findings)
	require.NoError(t, jsonErr)
	assert.NotContains(t, string(raw), "987-65-4321")
}

func TestPHIGate_KAnonymityBoundary(t *testing.T) {
	t.Run("group of k-1 fails", func(t *testing.T) {
		gate, store := newGateForTest(t)
		rows := append(anonymousRows(6, "681"), anonymousRows(4, "production")...)
		batch := testBatch(rows, gateColumns()...)

		_, err := gate.Check(context.Background(), batch)
		assert.ErrorIs(t, err, domain.ErrKAnonymityViolated)
		store.AssertCalled(t, "Quarantine", mock.Anything, batch.Snapshot.ID, "k-anonymity")
	})

	t.Run("group of exactly k passes", func(t *testing.T) {
		gate, _ := newGateForTest(t)
		rows := append(anonymousRows(6, "681"), anonymousRows(5, "production")...)
		batch := testBatch(rows, gateColumns()...)

		_, err := gate.Check(context.Background(), batch)
		assert.NoError(t, err)
	})
}

func TestPHIGate_QuarantinedDatasetIsRejected(t *testing.T) {
	store := new(testutil.MockQuarantineStore)
	store.On("IsQuarantined", mock.Anything, mock.Anything).Return(true, nil)
	gate := NewPHIGateService(DefaultGateConfig(), store)

	batch := testBatch(anonymousRows(6, "681"), gateColumns()...)
	_, err := gate.Check(context.Background(), batch)
	assert.ErrorIs(t, err, domain.ErrDatasetQuarantined)
}
