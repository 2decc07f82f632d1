package registry_test

import (
	"context"
	"errors"
	"testing"

	"Courier/internal/apperr"
	"Courier/internal/constants"
	"Courier/internal/memstore"
	"Courier/internal/models"
	"Courier/internal/registry"
)

type stubReleaser struct {
	calls    int
	released []string
	err      error
}

func (s *stubReleaser) ReleaseOnDutyOff(ctx context.Context, tenantID, driverID string) ([]string, error) {
	s.calls++
	return s.released, s.err
}

func newRegistry(t *testing.T, rel registry.Releaser) (*registry.Registry, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	reg := registry.New(store, rel)
	if _, err := reg.AddStaff(context.Background(), "t1", models.StaffMember{ID: "d1", DisplayName: "Dana", Role: constants.ROLE_DRIVER}); err != nil {
		t.Fatalf("AddStaff: %v", err)
	}
	return reg, store
}

func TestSetOnDutyReleasesOnlyWhenGoingOff(t *testing.T) {
	rel := &stubReleaser{released: []string{"r1"}}
	reg, _ := newRegistry(t, rel)
	ctx := context.Background()

	change, err := reg.SetOnDuty(ctx, "t1", "d1", true)
	if err != nil {
		t.Fatalf("SetOnDuty(true): %v", err)
	}
	if !change.Staff.IsOnDuty || rel.calls != 0 {
		t.Fatalf("going on duty: staff=%+v releaser calls=%d", change.Staff, rel.calls)
	}

	change, err = reg.SetOnDuty(ctx, "t1", "d1", false)
	if err != nil {
		t.Fatalf("SetOnDuty(false): %v", err)
	}
	if change.Staff.IsOnDuty || rel.calls != 1 || len(change.Released) != 1 {
		t.Fatalf("going off duty: %+v calls=%d", change, rel.calls)
	}
}

func TestSetOnDutyReleaseFailureDoesNotBlock(t *testing.T) {
	rel := &stubReleaser{err: apperr.Transient("release", errors.New("connection reset"))}
	reg, store := newRegistry(t, rel)
	ctx := context.Background()

	if _, err := reg.SetOnDuty(ctx, "t1", "d1", true); err != nil {
		t.Fatalf("SetOnDuty(true): %v", err)
	}
	change, err := reg.SetOnDuty(ctx, "t1", "d1", false)
	if err != nil {
		t.Fatalf("release failure must not fail the duty change: %v", err)
	}
	if !errors.Is(change.ReleaseError, apperr.ErrTransient) {
		t.Fatalf("ReleaseError = %v, want transient", change.ReleaseError)
	}

	staff, err := store.GetStaff(ctx, "t1", "d1")
	if err != nil {
		t.Fatalf("GetStaff: %v", err)
	}
	if staff.IsOnDuty {
		t.Fatal("duty flag must be persisted even when release fails")
	}
}

func TestSetOnDutyUnknownStaff(t *testing.T) {
	reg, _ := newRegistry(t, &stubReleaser{})
	if _, err := reg.SetOnDuty(context.Background(), "t2", "d1", false); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign tenant: err = %v, want not found", err)
	}
}

func TestAddStaffAndUpdateRole(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()

	if _, err := reg.AddStaff(ctx, "t1", models.StaffMember{ID: "x", DisplayName: "X", Role: "owner"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown role: err = %v, want validation", err)
	}
	if _, err := reg.AddStaff(ctx, "t1", models.StaffMember{ID: "x", Role: constants.ROLE_DRIVER}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing name: err = %v, want validation", err)
	}

	m, err := reg.AddStaff(ctx, "t1", models.StaffMember{ID: "s2", DisplayName: "Sam", Role: "Dispatcher", Phone: models.NewNullString("8 999 123 45 67")})
	if err != nil {
		t.Fatalf("AddStaff: %v", err)
	}
	if m.Role != constants.ROLE_DISPATCHER || m.Phone.String != "+79991234567" {
		t.Fatalf("unexpected staff %+v", m)
	}

	m, err = reg.UpdateRole(ctx, "t1", "s2", constants.ROLE_ADMIN)
	if err != nil || m.Role != constants.ROLE_ADMIN {
		t.Fatalf("UpdateRole = %+v, %v", m, err)
	}
	if _, err := reg.UpdateRole(ctx, "t1", "s2", "janitor"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad role: err = %v, want validation", err)
	}

	list, err := reg.List(ctx, "t1")
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %d, %v; want 2", len(list), err)
	}
	if list[0].DisplayName != "Dana" {
		t.Fatalf("list not sorted by name: %+v", list)
	}
}

func TestSetOnDutyWithoutReleaser(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	change, err := reg.SetOnDuty(context.Background(), "t1", "d1", false)
	if err != nil || change.Released != nil {
		t.Fatalf("SetOnDuty = %+v, %v", change, err)
	}
}
