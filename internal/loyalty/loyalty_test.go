package loyalty_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"Courier/internal/apperr"
	"Courier/internal/loyalty"
	"Courier/internal/memstore"
	"Courier/internal/models"
)

type fixedThresholds map[string]int

func (f fixedThresholds) LoyaltyThreshold(tenantID string) int { return f[tenantID] }

func TestApplyPaidCompletions(t *testing.T) {
	var acc models.LoyaltyAccount
	for i := 0; i < 9; i++ {
		acc = loyalty.Apply(acc, false, 10)
	}
	if acc.LoyaltyPoints != 9 || acc.FreeDeliveryCredits != 0 {
		t.Fatalf("after 9: points=%d credits=%d, want 9/0", acc.LoyaltyPoints, acc.FreeDeliveryCredits)
	}

	acc = loyalty.Apply(acc, false, 10)
	if acc.LoyaltyPoints != 0 || acc.FreeDeliveryCredits != 1 {
		t.Fatalf("after 10: points=%d credits=%d, want 0/1", acc.LoyaltyPoints, acc.FreeDeliveryCredits)
	}

	acc = loyalty.Apply(acc, false, 10)
	if acc.LoyaltyPoints != 1 || acc.FreeDeliveryCredits != 1 {
		t.Fatalf("after 11: points=%d credits=%d, want 1/1", acc.LoyaltyPoints, acc.FreeDeliveryCredits)
	}
	if acc.TotalDeliveries != 11 {
		t.Fatalf("total=%d, want 11", acc.TotalDeliveries)
	}
}

func TestApplyFreeDelivery(t *testing.T) {
	acc := models.LoyaltyAccount{LoyaltyPoints: 4, FreeDeliveryCredits: 1, TotalDeliveries: 14}

	acc = loyalty.Apply(acc, true, 10)
	if acc.FreeDeliveryCredits != 0 || acc.LoyaltyPoints != 4 || acc.TotalDeliveries != 15 {
		t.Fatalf("got %+v, want credits=0 points=4 total=15", acc)
	}

	acc = loyalty.Apply(acc, true, 10)
	if acc.FreeDeliveryCredits != 0 {
		t.Fatalf("credits went to %d, want floor at 0", acc.FreeDeliveryCredits)
	}
	if acc.TotalDeliveries != 16 {
		t.Fatalf("total=%d, want 16", acc.TotalDeliveries)
	}
}

func TestApplyInvalidThresholdUsesDefault(t *testing.T) {
	var acc models.LoyaltyAccount
	for i := 0; i < 10; i++ {
		acc = loyalty.Apply(acc, false, 0)
	}
	if acc.FreeDeliveryCredits != 1 || acc.LoyaltyPoints != 0 {
		t.Fatalf("got %+v, want one credit at default threshold", acc)
	}
}

func TestApplyLoweredThresholdKeepsPointsInRange(t *testing.T) {
	acc := models.LoyaltyAccount{LoyaltyPoints: 8}
	acc = loyalty.Apply(acc, false, 3)
	if acc.LoyaltyPoints < 0 || acc.LoyaltyPoints >= 3 {
		t.Fatalf("points=%d out of [0,3)", acc.LoyaltyPoints)
	}
	if acc.FreeDeliveryCredits != 3 {
		t.Fatalf("credits=%d, want 3", acc.FreeDeliveryCredits)
	}
}

func TestLedgerTenantThreshold(t *testing.T) {
	store := memstore.New()
	ledger := loyalty.NewLedger(store, fixedThresholds{"t1": 3}, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ledger.Accrue(ctx, "t1", "c1", false); err != nil {
			t.Fatalf("Accrue: %v", err)
		}
	}
	ok, err := ledger.Eligible(ctx, "t1", "c1")
	if err != nil || !ok {
		t.Fatalf("Eligible = %v, %v; want true", ok, err)
	}

	// Счета разных арендаторов не пересекаются.
	ok, err = ledger.Eligible(ctx, "t2", "c1")
	if err != nil || ok {
		t.Fatalf("Eligible in other tenant = %v, %v; want false", ok, err)
	}
	if got := ledger.Threshold("t2"); got != 10 {
		t.Fatalf("Threshold(t2) = %d, want default 10", got)
	}
}

func TestLedgerStatus(t *testing.T) {
	store := memstore.New()
	ledger := loyalty.NewLedger(store, nil, 10)
	ctx := context.Background()

	st, err := ledger.Status(ctx, "t1", "new-customer")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Points != 0 || st.Credits != 0 || st.Eligible || st.DeliveriesUntilNextCredit != 10 {
		t.Fatalf("unexpected empty status %+v", st)
	}

	for i := 0; i < 7; i++ {
		if _, err := ledger.Accrue(ctx, "t1", "c1", false); err != nil {
			t.Fatalf("Accrue: %v", err)
		}
	}
	st, err = ledger.Status(ctx, "t1", "c1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Points != 7 || st.DeliveriesUntilNextCredit != 3 || st.TotalDeliveries != 7 {
		t.Fatalf("unexpected status %+v", st)
	}

	if _, err := ledger.Status(ctx, "t1", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Status without customer: err=%v, want validation", err)
	}
}

func TestLedgerPrepareGuest(t *testing.T) {
	ledger := loyalty.NewLedger(memstore.New(), nil, 10)
	if a := ledger.Prepare("t1", "", false); a != nil {
		t.Fatalf("Prepare for guest = %+v, want nil", a)
	}
	a := ledger.Prepare("t1", "c1", true)
	if a == nil || a.Threshold != 10 || !a.UsedFreeDelivery {
		t.Fatalf("unexpected accrual %+v", a)
	}
	if _, err := ledger.Accrue(context.Background(), "t1", "", false); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Accrue for guest: err=%v, want validation", err)
	}
}

func TestLedgerConcurrentAccruals(t *testing.T) {
	store := memstore.New()
	ledger := loyalty.NewLedger(store, nil, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Accrue(ctx, "t1", "c1", false); err != nil {
				t.Errorf("Accrue: %v", err)
			}
		}()
	}
	wg.Wait()

	acc, err := store.GetLoyaltyAccount(ctx, "t1", "c1")
	if err != nil {
		t.Fatalf("GetLoyaltyAccount: %v", err)
	}
	if acc.TotalDeliveries != 25 || acc.FreeDeliveryCredits != 2 || acc.LoyaltyPoints != 5 {
		t.Fatalf("lost updates: %+v", acc)
	}
}
