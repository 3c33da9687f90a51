package database

import (
	"context"
	"time"
)

type PlanRepository interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context, query PlanQuery) ([]Plan, int, error)
	UpdatePlan(ctx context.Context, plan *Plan) (bool, error)
	DeletePlan(ctx context.Context, id string) (bool, error)
	GetPlanCount(ctx context.Context) (int, error)
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item *Item) error
	CreateItemsIfAbsent(ctx context.Context, items []Item) (int, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context, planID string, query ItemQuery) ([]Item, int, error)
	UpdateItem(ctx context.Context, item *Item, expected time.Time) (bool, error)
	DeleteItem(ctx context.Context, id string) (bool, error)
	GetDueItems(ctx context.Context, now time.Time, limit int) ([]Item, error)
	GetItemCount(ctx context.Context) (int, error)
}

type EventLinkRepository interface {
	GetEventLink(ctx context.Context, itemID string) (*EventLink, error)
	UpsertEventLink(ctx context.Context, link EventLink) error
}
