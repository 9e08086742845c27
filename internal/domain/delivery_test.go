package domain

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDerivedBatchKey_RoundsToWindow(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	a := DerivedBatchKey("Ravi", base.Add(3*time.Second), DefaultBatchWindow)
	b := DerivedBatchKey("Ravi", base.Add(-4*time.Second), DefaultBatchWindow)
	c := DerivedBatchKey("Ravi", base.Add(6*time.Second), DefaultBatchWindow)
	d := DerivedBatchKey("Kumar", base, DefaultBatchWindow)

	assert.Equal(t, "Ravi@2026-03-14T09:30:00Z", a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestDerivedBatchKey_LongestAgentNameFitsColumn(t *testing.T) {
	name := strings.Repeat("é", 120)
	key := DerivedBatchKey(name, time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), DefaultBatchWindow)

	assert.Equal(t, 141, utf8.RuneCountInString(key))
	assert.LessOrEqual(t, utf8.RuneCountInString(key), 160)
}

func TestDerivedBatchKey_DefaultsWindow(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 4, 0, time.UTC)
	assert.Equal(t, DerivedBatchKey("Ravi", at, DefaultBatchWindow), DerivedBatchKey("Ravi", at, 0))
}

func TestDeliveryRecord_BatchKeyPrefersExplicitID(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	record := DeliveryRecord{BatchID: "01HZXBATCH", DeliveryDate: at, Agent: DeliveryAgent{Name: "Ravi"}}
	assert.Equal(t, "01HZXBATCH", record.BatchKey(DefaultBatchWindow))

	record.BatchID = ""
	assert.Equal(t, "Ravi@2026-03-14T09:30:00Z", record.BatchKey(DefaultBatchWindow))
}

func TestAdjustment_BelongsToBatch(t *testing.T) {
	linked := Adjustment{LinkedBatchID: "B1", Description: "[B1] received"}
	legacy := Adjustment{Description: "[Ravi@2026-03-14T09:30:00Z] received amount"}
	plain := Adjustment{Description: "Loading fee"}

	assert.True(t, linked.BelongsToBatch("B1"))
	assert.False(t, linked.BelongsToBatch("B2"))
	assert.True(t, legacy.BelongsToBatch("Ravi@2026-03-14T09:30:00Z"))
	assert.False(t, plain.BelongsToBatch("B1"))
	assert.False(t, plain.BelongsToBatch(""))
}

func TestParseAdjustmentType(t *testing.T) {
	typ, ok := ParseAdjustmentType("Charge")
	assert.True(t, ok)
	assert.Equal(t, AdjustmentCharge, typ)

	_, ok = ParseAdjustmentType("refund")
	assert.False(t, ok)
}

func TestAdjustment_SignedAmount(t *testing.T) {
	assert.Equal(t, 10.0, Adjustment{Type: AdjustmentCharge, Amount: 10}.SignedAmount())
	assert.Equal(t, -10.0, Adjustment{Type: AdjustmentDiscount, Amount: 10}.SignedAmount())
	assert.Equal(t, -10.0, Adjustment{Type: AdjustmentAdvance, Amount: 10}.SignedAmount())
}
