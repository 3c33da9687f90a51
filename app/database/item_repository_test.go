package database

import (
	"context"
	"testing"
	"time"
)

func newTestItem(id, planID string, at time.Time) *Item {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return &Item{
		ID:          id,
		PlanID:      planID,
		ScheduledAt: at,
		Timezone:    "Europe/Berlin",
		Channel:     "instagram",
		ContentType: "post",
		Topic:       "Topic " + id,
		Status:      ItemStatusPlanned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func setupItemRepo(t *testing.T) (*ItemRepo, *DB) {
	t.Helper()
	db := newTestDB(t)
	if err := NewPlanRepository(db).CreatePlan(context.Background(), newTestPlan("p1", "Plan", "2024-01-01", "2024-01-31")); err != nil {
		t.Fatal(err)
	}
	return NewItemRepository(db), db
}

func TestItemRepo_CreateRequiresExistingPlan(t *testing.T) {
	repo, _ := setupItemRepo(t)

	err := repo.CreateItem(context.Background(), newTestItem("i1", "missing-plan", time.Now()))
	if err == nil {
		t.Error("Expected foreign key violation for unknown plan")
	}
}

func TestItemRepo_RoundTripGeneratedContent(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupItemRepo(t)

	item := newTestItem("i1", "p1", time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC))
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	item.Generated = GeneratedContent{
		Title:    "Hello",
		Text:     "Body text",
		Variants: []string{"A", "B"},
		Hashtags: []string{"#one"},
		CTA:      "Buy now",
	}
	published := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	item.PublishedAt = &published
	item.Status = ItemStatusPublished

	ok, err := repo.UpdateItem(ctx, item, item.UpdatedAt)
	if err != nil || !ok {
		t.Fatalf("Expected update to succeed, got %v, %v", ok, err)
	}

	got, err := repo.GetItem(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Generated.Equal(item.Generated) {
		t.Errorf("Expected generated content %+v, got %+v", item.Generated, got.Generated)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(published) {
		t.Errorf("Expected published_at %v, got %v", published, got.PublishedAt)
	}
	if got.LocalScheduledAt().Hour() != 9 {
		t.Errorf("Expected 08:30 UTC to display as 09:30 in Berlin, got %v", got.LocalScheduledAt())
	}
}

func TestItemRepo_UpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupItemRepo(t)

	item := newTestItem("i1", "p1", time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC))
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	loaded := item.UpdatedAt

	item.Topic = "First writer"
	item.UpdatedAt = loaded.Add(time.Second)
	if ok, err := repo.UpdateItem(ctx, item, loaded); err != nil || !ok {
		t.Fatalf("Expected first update to succeed, got %v, %v", ok, err)
	}

	stale := newTestItem("i1", "p1", item.ScheduledAt)
	stale.Topic = "Second writer"
	stale.UpdatedAt = loaded.Add(2 * time.Second)
	ok, err := repo.UpdateItem(ctx, stale, loaded)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Expected update against a stale version to match no row")
	}

	got, err := repo.GetItem(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Topic != "First writer" {
		t.Errorf("Expected first writer's topic to survive, got %q", got.Topic)
	}

	if ok, _ := repo.UpdateItem(ctx, newTestItem("missing", "p1", time.Now()), loaded); ok {
		t.Error("Expected update of a missing item to match no row")
	}
}

func TestItemRepo_ListOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupItemRepo(t)

	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	late := newTestItem("late", "p1", base.Add(48*time.Hour))
	early := newTestItem("early", "p1", base)
	middle := newTestItem("middle", "p1", base.Add(24*time.Hour))
	middle.Channel = "linkedin"
	middle.Topic = "Résumé tips"

	for _, item := range []*Item{late, early, middle} {
		if err := repo.CreateItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := repo.ListItems(ctx, "p1", ItemQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("Expected 3 items, got %d", total)
	}
	if items[0].ID != "early" || items[1].ID != "middle" || items[2].ID != "late" {
		t.Errorf("Expected scheduled_at asc order, got %s, %s, %s", items[0].ID, items[1].ID, items[2].ID)
	}

	linkedin, _, err := repo.ListItems(ctx, "p1", ItemQuery{Channel: "linkedin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(linkedin) != 1 || linkedin[0].ID != "middle" {
		t.Errorf("Expected only the linkedin item, got %v", linkedin)
	}

	found, _, err := repo.ListItems(ctx, "p1", ItemQuery{Search: "RESUME"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != "middle" {
		t.Errorf("Expected folded search to match 'Résumé', got %v", found)
	}

	from := base.Add(time.Hour)
	to := base.Add(48 * time.Hour)
	ranged, _, err := repo.ListItems(ctx, "p1", ItemQuery{From: &from, To: &to})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 1 || ranged[0].ID != "middle" {
		t.Errorf("Expected half-open range to select only the middle item, got %v", ranged)
	}
}

func TestItemRepo_CreateItemsIfAbsentSkipsOccupiedSlots(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupItemRepo(t)

	at := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	batch := []Item{*newTestItem("a", "p1", at), *newTestItem("b", "p1", at.Add(24*time.Hour))}

	n, err := repo.CreateItemsIfAbsent(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted items, got %d", n)
	}

	again := []Item{*newTestItem("c", "p1", at), *newTestItem("d", "p1", at.Add(72*time.Hour))}
	n, err = repo.CreateItemsIfAbsent(ctx, again)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected only the free slot to be inserted, got %d", n)
	}
}

func TestItemRepo_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupItemRepo(t)

	if err := repo.CreateItem(ctx, newTestItem("i1", "p1", time.Now())); err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.DeleteItem(ctx, "i1")
	if err != nil || !deleted {
		t.Fatalf("Expected first delete to remove the item, got %v, %v", deleted, err)
	}

	deleted, err = repo.DeleteItem(ctx, "i1")
	if err != nil {
		t.Fatalf("Expected no error deleting a missing item, got %v", err)
	}
	if deleted {
		t.Error("Expected second delete to report nothing deleted")
	}
}

func TestItemRepo_GetDueItems(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupItemRepo(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	due := newTestItem("due", "p1", now.Add(-time.Hour))
	due.Status = ItemStatusScheduled
	due.Generated.Text = "ready to go"

	noText := newTestItem("no-text", "p1", now.Add(-time.Hour))
	noText.Status = ItemStatusScheduled

	future := newTestItem("future", "p1", now.Add(time.Hour))
	future.Status = ItemStatusScheduled
	future.Generated.Text = "later"

	for _, item := range []*Item{due, noText, future} {
		if err := repo.CreateItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	items, err := repo.GetDueItems(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "due" {
		t.Errorf("Expected only the due item with text, got %v", items)
	}
}

func TestEventLinkRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	repo, db := setupItemRepo(t)
	links := NewEventLinkRepository(db)

	if err := repo.CreateItem(ctx, newTestItem("i1", "p1", time.Now())); err != nil {
		t.Fatal(err)
	}

	link, err := links.GetEventLink(ctx, "i1")
	if err != nil || link != nil {
		t.Fatalf("Expected no link yet, got %v, %v", link, err)
	}

	first := EventLink{ItemID: "i1", CalendarURL: "/cal/", EventRef: "/cal/a.ics", SyncedAt: time.Now()}
	if err := links.UpsertEventLink(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := first
	second.EventRef = "/cal/b.ics"
	if err := links.UpsertEventLink(ctx, second); err != nil {
		t.Fatal(err)
	}

	link, err = links.GetEventLink(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if link.EventRef != "/cal/b.ics" {
		t.Errorf("Expected upsert to replace event ref, got %s", link.EventRef)
	}

	if _, err := repo.DeleteItem(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	link, err = links.GetEventLink(ctx, "i1")
	if err != nil || link != nil {
		t.Errorf("Expected link to be removed with its item, got %v, %v", link, err)
	}
}

func TestFoldSearch(t *testing.T) {
	if got := foldSearch("Crème  Brûlée", "TIPS"); got != "creme brulee tips" {
		t.Errorf("Unexpected folded text: %q", got)
	}
	if got := likePattern("50%_off"); got != `%50\%\_off%` {
		t.Errorf("Unexpected LIKE pattern: %q", got)
	}
}
