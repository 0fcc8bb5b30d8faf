package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/complainator-backend/internal/repos"
	"github.com/yungbote/complainator-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&types.User{}, &types.UserToken{}, &types.Retrospective{}, &types.Note{}, &types.Suggestion{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *types.User {
	t.Helper()
	user := &types.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		Password:  "hashed",
		FirstName: "test",
		LastName:  "user",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedRetrospective(t *testing.T, db *gorm.DB, userID uuid.UUID) *types.Retrospective {
	t.Helper()
	retro := &types.Retrospective{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "Retrospektywa #1 - 01.09.2026",
		Date:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(retro).Error; err != nil {
		t.Fatalf("failed to seed retrospective: %v", err)
	}
	return retro
}

type fakeAISuggestionService struct {
	texts      []string
	err        error
	calls      int
	onGenerate func()
}

func (f *fakeAISuggestionService) Generate(ctx context.Context, notes []*types.Note) ([]string, error) {
	f.calls++
	if f.onGenerate != nil {
		f.onGenerate()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.texts, nil
}

func newSuggestionFixture(t *testing.T, ai *fakeAISuggestionService) (SuggestionService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	retroRepo := repos.NewRetrospectiveRepo(db, log)
	suggestionRepo := repos.NewSuggestionRepo(db, log)
	return NewSuggestionService(db, log, retroRepo, suggestionRepo, ai), db
}

func reloadRetro(t *testing.T, db *gorm.DB, id uuid.UUID) *types.Retrospective {
	t.Helper()
	var retro types.Retrospective
	if err := db.First(&retro, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload retrospective: %v", err)
	}
	return &retro
}

func TestGenerateForRetrospectiveCreatesPendingBatch(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"A", "B", "C"}}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	got, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(got))
	}
	for i, s := range got {
		if s.Status != types.SuggestionStatusPending {
			t.Fatalf("suggestion %d status: want=Pending got=%s", i, s.Status)
		}
		if s.RetrospectiveID != retro.ID {
			t.Fatalf("suggestion %d bound to wrong retrospective", i)
		}
		if s.ID == uuid.Nil {
			t.Fatalf("suggestion %d has nil id", i)
		}
	}
	if got[0].SuggestionText != "A" || got[1].SuggestionText != "B" || got[2].SuggestionText != "C" {
		t.Fatalf("suggestion order not preserved: %v", []string{got[0].SuggestionText, got[1].SuggestionText, got[2].SuggestionText})
	}

	var count int64
	if err := db.Model(&types.Suggestion{}).Where("retrospective_id = ?", retro.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 persisted rows, got %d", count)
	}
}

func TestGenerateForRetrospectiveIdempotentWhilePending(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"A", "B"}}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	first, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	second, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("expected 1 gateway call across both requests, got %d", ai.calls)
	}
	if len(second) != len(first) {
		t.Fatalf("expected same batch size, got %d vs %d", len(second), len(first))
	}
	firstIDs := map[uuid.UUID]bool{}
	for _, s := range first {
		firstIDs[s.ID] = true
	}
	for _, s := range second {
		if !firstIDs[s.ID] {
			t.Fatalf("second call returned a row not in the first batch: %s", s.ID)
		}
	}
}

func TestGenerateForRetrospectiveRegeneratesAfterFullTriage(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"A", "B"}}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	first, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	for _, s := range first {
		if _, err := svc.UpdateStatus(t.Context(), user.ID, s.ID, types.SuggestionStatusAccepted); err != nil {
			t.Fatalf("accept failed: %v", err)
		}
	}

	second, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if ai.calls != 2 {
		t.Fatalf("expected a fresh gateway call after full triage, got %d calls", ai.calls)
	}
	for i, s := range second {
		for _, old := range first {
			if s.ID == old.ID {
				t.Fatalf("suggestion %d reuses a triaged row", i)
			}
		}
	}
}

func TestGenerateForRetrospectiveDiscardsBatchWhenRivalLandsMidFlight(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"late A", "late B"}}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	// A second generate commits its batch while this one is waiting on the
	// gateway. The pending gate must catch it when persisting.
	rival := &types.Suggestion{
		ID:              uuid.New(),
		RetrospectiveID: retro.ID,
		SuggestionText:  "rival",
		Status:          types.SuggestionStatusPending,
	}
	ai.onGenerate = func() {
		if err := db.Create(rival).Error; err != nil {
			t.Errorf("failed to insert rival suggestion: %v", err)
		}
	}

	got, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != rival.ID {
		t.Fatalf("expected the rival batch to win, got %d suggestions", len(got))
	}

	var count int64
	if err := db.Model(&types.Suggestion{}).
		Where("retrospective_id = ? AND status = ?", retro.ID, types.SuggestionStatusPending).
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single pending batch outstanding, got %d pending rows", count)
	}
}

func TestGenerateForRetrospectiveOwnershipAndAbsence(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"A"}}
	svc, db := newSuggestionFixture(t, ai)
	owner := seedUser(t, db)
	stranger := seedUser(t, db)
	retro := seedRetrospective(t, db, owner.ID)

	if _, err := svc.GenerateForRetrospective(t.Context(), stranger.ID, retro.ID); !errors.Is(err, ErrRetrospectiveNotFound) {
		t.Fatalf("foreign retrospective: want ErrRetrospectiveNotFound, got %v", err)
	}
	if _, err := svc.GenerateForRetrospective(t.Context(), owner.ID, uuid.New()); !errors.Is(err, ErrRetrospectiveNotFound) {
		t.Fatalf("missing retrospective: want ErrRetrospectiveNotFound, got %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("gateway called for unauthorized request, calls=%d", ai.calls)
	}
}

func TestGenerateForRetrospectiveGatewayFailureLeavesNoRows(t *testing.T) {
	ai := &fakeAISuggestionService{err: errors.New("provider down")}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	if _, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID); err == nil {
		t.Fatalf("expected gateway failure to propagate")
	}
	var count int64
	if err := db.Model(&types.Suggestion{}).Where("retrospective_id = ?", retro.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no persisted suggestions after failure, got %d", count)
	}
}

func TestUpdateStatusCounterTransitions(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"first", "second"}}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	batch, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	s1, s2 := batch[0], batch[1]

	steps := []struct {
		suggestionID uuid.UUID
		status       types.SuggestionStatus
		wantAccepted int
		wantRejected int
	}{
		{s1.ID, types.SuggestionStatusAccepted, 1, 0},
		{s2.ID, types.SuggestionStatusRejected, 1, 1},
		{s1.ID, types.SuggestionStatusRejected, 0, 2},
		{s1.ID, types.SuggestionStatusPending, 0, 1},
	}
	for i, step := range steps {
		ok, err := svc.UpdateStatus(t.Context(), user.ID, step.suggestionID, step.status)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("step %d: expected update to apply", i)
		}
		got := reloadRetro(t, db, retro.ID)
		if got.AcceptedCount != step.wantAccepted || got.RejectedCount != step.wantRejected {
			t.Fatalf("step %d: counters want=(%d,%d) got=(%d,%d)",
				i, step.wantAccepted, step.wantRejected, got.AcceptedCount, got.RejectedCount)
		}
	}
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"only"}}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	batch, err := svc.GenerateForRetrospective(t.Context(), user.ID, retro.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	s := batch[0]

	if ok, err := svc.UpdateStatus(t.Context(), user.ID, s.ID, types.SuggestionStatusAccepted); err != nil || !ok {
		t.Fatalf("accept failed: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.UpdateStatus(t.Context(), user.ID, s.ID, types.SuggestionStatusAccepted); err != nil || !ok {
		t.Fatalf("repeat accept should succeed as no-op: ok=%v err=%v", ok, err)
	}
	got := reloadRetro(t, db, retro.ID)
	if got.AcceptedCount != 1 || got.RejectedCount != 0 {
		t.Fatalf("counters moved on no-op: accepted=%d rejected=%d", got.AcceptedCount, got.RejectedCount)
	}
}

func TestUpdateStatusGuardedAgainstStaleRead(t *testing.T) {
	db := newTestDB(t)
	log := newTestLogger(t)
	repo := repos.NewSuggestionRepo(db, log)
	user := seedUser(t, db)
	retro := seedRetrospective(t, db, user.ID)

	s := &types.Suggestion{
		ID:              uuid.New(),
		RetrospectiveID: retro.ID,
		SuggestionText:  "contested",
		Status:          types.SuggestionStatusPending,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("failed to seed suggestion: %v", err)
	}

	affected, err := repo.UpdateStatus(t.Context(), nil, s.ID, types.SuggestionStatusPending, types.SuggestionStatusAccepted)
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row changed, got %d", affected)
	}

	// A writer that read Pending before the first update committed must not win.
	affected, err = repo.UpdateStatus(t.Context(), nil, s.ID, types.SuggestionStatusPending, types.SuggestionStatusRejected)
	if err != nil {
		t.Fatalf("stale update errored: %v", err)
	}
	if affected != 0 {
		t.Fatalf("stale update changed %d rows, want 0", affected)
	}

	var stored types.Suggestion
	if err := db.First(&stored, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("failed to reload suggestion: %v", err)
	}
	if stored.Status != types.SuggestionStatusAccepted {
		t.Fatalf("status overwritten by stale writer: got %s", stored.Status)
	}
}

func TestUpdateStatusUnknownSuggestion(t *testing.T) {
	ai := &fakeAISuggestionService{}
	svc, db := newSuggestionFixture(t, ai)
	user := seedUser(t, db)

	ok, err := svc.UpdateStatus(t.Context(), user.ID, uuid.New(), types.SuggestionStatusAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected false for unknown suggestion")
	}
}

func TestUpdateStatusForeignOwnerRejected(t *testing.T) {
	ai := &fakeAISuggestionService{texts: []string{"mine"}}
	svc, db := newSuggestionFixture(t, ai)
	owner := seedUser(t, db)
	stranger := seedUser(t, db)
	retro := seedRetrospective(t, db, owner.ID)

	batch, err := svc.GenerateForRetrospective(t.Context(), owner.ID, retro.ID)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	s := batch[0]

	ok, err := svc.UpdateStatus(t.Context(), stranger.ID, s.ID, types.SuggestionStatusAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected false for foreign caller")
	}

	var stored types.Suggestion
	if err := db.First(&stored, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("failed to reload suggestion: %v", err)
	}
	if stored.Status != types.SuggestionStatusPending {
		t.Fatalf("status leaked across owners: got %s", stored.Status)
	}
	got := reloadRetro(t, db, retro.ID)
	if got.AcceptedCount != 0 || got.RejectedCount != 0 {
		t.Fatalf("counters moved for foreign caller: accepted=%d rejected=%d", got.AcceptedCount, got.RejectedCount)
	}
}
