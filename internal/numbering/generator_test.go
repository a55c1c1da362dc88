package numbering

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// memoryLedger mimics row-locked counters: a transaction holds the lock of
// every key it touched until it commits or rolls back.
type memoryLedger struct {
	mu     sync.Mutex
	values map[SequenceKey]int64
	locks  map[SequenceKey]*sync.Mutex
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{values: map[SequenceKey]int64{}, locks: map[SequenceKey]*sync.Mutex{}}
}

func (l *memoryLedger) lockFor(key SequenceKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

func (l *memoryLedger) committed(key SequenceKey) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values[key]
}

func (l *memoryLedger) begin() *memoryTx {
	return &memoryTx{ledger: l, pending: map[SequenceKey]int64{}}
}

type memoryTx struct {
	ledger  *memoryLedger
	pending map[SequenceKey]int64
	held    []*sync.Mutex
}

func (tx *memoryTx) NextValue(ctx context.Context, key SequenceKey) (int64, error) {
	if v, ok := tx.pending[key]; ok {
		tx.pending[key] = v + 1
		return v + 1, nil
	}
	lock := tx.ledger.lockFor(key)
	lock.Lock()
	tx.held = append(tx.held, lock)
	v := tx.ledger.committed(key) + 1
	tx.pending[key] = v
	return v, nil
}

func (tx *memoryTx) commit() {
	tx.ledger.mu.Lock()
	for k, v := range tx.pending {
		tx.ledger.values[k] = v
	}
	tx.ledger.mu.Unlock()
	tx.release()
}

func (tx *memoryTx) rollback() {
	tx.release()
}

func (tx *memoryTx) release() {
	for _, m := range tx.held {
		m.Unlock()
	}
	tx.held = nil
}

type fakeDirectory struct {
	shops     map[int64]string
	customers map[int64]string
}

func (d fakeDirectory) ShopCode(ctx context.Context, shopID int64) (string, error) {
	code, ok := d.shops[shopID]
	if !ok {
		return "", shared.NotFoundf("shop %d not found", shopID)
	}
	return code, nil
}

func (d fakeDirectory) CustomerCode(ctx context.Context, customerID int64) (string, bool, error) {
	code, ok := d.customers[customerID]
	return code, ok, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) DocumentNumberAllocated(docType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[docType]++
}

func newTestDirectory() fakeDirectory {
	return fakeDirectory{
		shops:     map[int64]string{1: "HQ", 2: "LL", 3: ""},
		customers: map[int64]string{10: "C0010", 11: ""},
	}
}

func TestAllocateSequentialNumbers(t *testing.T) {
	ledger := newMemoryLedger()
	recorder := &countingRecorder{}
	gen := NewGenerator(slog.Default(), recorder)
	dir := newTestDirectory()
	ctx := context.Background()

	var got []string
	for i := 0; i < 3; i++ {
		tx := ledger.begin()
		number, err := gen.Allocate(ctx, tx, dir, Request{DocType: Quotation, Prefix: "QT", ShopID: 1})
		require.NoError(t, err)
		tx.commit()
		got = append(got, number)
	}
	assert.Equal(t, []string{"QT/HQ-001", "QT/HQ-002", "QT/HQ-003"}, got)

	tx := ledger.begin()
	other, err := gen.Allocate(ctx, tx, dir, Request{DocType: Quotation, Prefix: "QT", ShopID: 2})
	require.NoError(t, err)
	tx.commit()
	assert.Equal(t, "QT/LL-001", other)
	assert.Equal(t, 4, recorder.counts["quotation"])
}

func TestAllocateInvoiceCountsPerCustomer(t *testing.T) {
	ledger := newMemoryLedger()
	gen := NewGenerator(slog.Default(), nil)
	dir := fakeDirectory{
		shops:     map[int64]string{1: "HQ"},
		customers: map[int64]string{10: "C0010", 12: "C0012"},
	}
	ctx := context.Background()
	alloc := func(customer int64) string {
		tx := ledger.begin()
		defer tx.commit()
		number, err := gen.Allocate(ctx, tx, dir, Request{DocType: Invoice, Prefix: "INV", ShopID: 1, CustomerID: &customer})
		require.NoError(t, err)
		return number
	}

	assert.Equal(t, "INV/C0010-HQ0001", alloc(10))
	assert.Equal(t, "INV/C0010-HQ0002", alloc(10))
	assert.Equal(t, "INV/C0012-HQ0001", alloc(12))
}

func TestAllocateFallbacksAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	gen := NewGenerator(logger, nil)
	ledger := newMemoryLedger()
	dir := newTestDirectory()
	ctx := context.Background()

	cases := []struct {
		name    string
		req     Request
		want    string
		logLine string
	}{
		{"shop without code", Request{DocType: Quotation, Prefix: "QT", ShopID: 3}, "QT/HQ-001", "shop has no code"},
		{"no customer", Request{DocType: Invoice, Prefix: "INV", ShopID: 1}, "INV/NOCUST-HQ0001", "document has no customer"},
		{"deleted customer", Request{DocType: Invoice, Prefix: "INV", ShopID: 1, CustomerID: ptr(99)}, "INV/NOCUST-HQ0002", "customer not found"},
		{"customer without code", Request{DocType: Invoice, Prefix: "INV", ShopID: 1, CustomerID: ptr(11)}, "INV/NEW-HQ0001", "customer has no code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			tx := ledger.begin()
			number, err := gen.Allocate(ctx, tx, dir, tc.req)
			require.NoError(t, err)
			tx.commit()
			assert.Equal(t, tc.want, number)
			assert.Contains(t, buf.String(), tc.logLine)
		})
	}
}

func TestAllocateSharesCounterForIdenticalCodes(t *testing.T) {
	ledger := newMemoryLedger()
	gen := NewGenerator(nil, nil)
	dir := fakeDirectory{
		shops:     map[int64]string{1: "HQ", 3: ""},
		customers: map[int64]string{5: FallbackNoCustomer, 10: "C0001"},
	}
	ctx := context.Background()
	alloc := func(req Request) string {
		tx := ledger.begin()
		defer tx.commit()
		number, err := gen.Allocate(ctx, tx, dir, req)
		require.NoError(t, err)
		return number
	}
	invoice := func(shopID int64, customerID *int64) Request {
		return Request{DocType: Invoice, Prefix: "INV", ShopID: shopID, CustomerID: customerID}
	}

	// A stored code equal to a fallback continues the fallback's count.
	assert.Equal(t, "INV/NOCUST-HQ0001", alloc(invoice(1, nil)))
	assert.Equal(t, "INV/NOCUST-HQ0002", alloc(invoice(1, ptr(5))))

	// A code handed to a new customer continues the previous owner's count.
	assert.Equal(t, "INV/C0001-HQ0001", alloc(invoice(1, ptr(10))))
	delete(dir.customers, 10)
	dir.customers[20] = "C0001"
	assert.Equal(t, "INV/C0001-HQ0002", alloc(invoice(1, ptr(20))))

	// A shop without a code counts alongside the real HQ shop.
	assert.Equal(t, "INV/C0001-HQ0003", alloc(invoice(3, ptr(20))))
	assert.Equal(t, "QT/HQ-001", alloc(Request{DocType: Quotation, Prefix: "QT", ShopID: 1}))
	assert.Equal(t, "QT/HQ-002", alloc(Request{DocType: Quotation, Prefix: "QT", ShopID: 3}))
}

func TestAllocateErrors(t *testing.T) {
	gen := NewGenerator(nil, nil)
	ledger := newMemoryLedger()
	dir := newTestDirectory()
	ctx := context.Background()

	_, err := gen.Allocate(ctx, ledger.begin(), dir, Request{DocType: Quotation, Prefix: "QT", ShopID: 404})
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = gen.Allocate(ctx, ledger.begin(), dir, Request{DocType: Quotation, Prefix: "qt", ShopID: 1})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = gen.Allocate(ctx, ledger.begin(), dir, Request{DocType: Quotation, Prefix: "QT"})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = gen.Allocate(ctx, ledger.begin(), dir, Request{DocType: "memo", Prefix: "M", ShopID: 1})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestRolledBackAllocationIsReused(t *testing.T) {
	ledger := newMemoryLedger()
	gen := NewGenerator(nil, nil)
	dir := newTestDirectory()
	ctx := context.Background()
	req := Request{DocType: Receipt, Prefix: "RCT", ShopID: 1}

	tx := ledger.begin()
	first, err := gen.Allocate(ctx, tx, dir, req)
	require.NoError(t, err)
	tx.rollback()

	tx = ledger.begin()
	second, err := gen.Allocate(ctx, tx, dir, req)
	require.NoError(t, err)
	tx.commit()

	assert.Equal(t, "RCT/HQ-00001", first)
	assert.Equal(t, first, second)
}

func TestConcurrentAllocationsAreDistinct(t *testing.T) {
	const workers = 50
	ledger := newMemoryLedger()
	gen := NewGenerator(nil, nil)
	dir := newTestDirectory()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tx := ledger.begin()
			number, err := gen.Allocate(ctx, tx, dir, Request{DocType: Quotation, Prefix: "QT", ShopID: 1})
			if i%7 == 0 {
				time.Sleep(time.Millisecond)
			}
			tx.commit()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, number)
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, workers)
	seqs := make([]int, 0, workers)
	seen := map[string]bool{}
	for _, n := range numbers {
		require.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
		parts, err := Parse(Quotation, n)
		require.NoError(t, err)
		seqs = append(seqs, int(parts.Sequence))
	}
	sort.Ints(seqs)
	for i, s := range seqs {
		assert.Equal(t, i+1, s)
	}
}

func ptr(v int64) *int64 {
	return &v
}
