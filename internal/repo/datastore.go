package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/ropl-btc/project-tasks/internal/model"
)

const (
	taskKind  = "Task"
	noteKind  = "Note"
	userAgent = "project-tasks"
)

// NewDatastoreClient connects to Cloud Datastore. The client honours DATASTORE_EMULATOR_HOST on its own.
func NewDatastoreClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*datastore.Client, error) {
	opts = append([]option.ClientOption{option.WithUserAgent(userAgent)}, opts...)
	client, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	return client, nil
}

type taskEntity struct {
	Owner     string
	Text      string `datastore:",noindex"`
	Status    string
	Priority  string
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e taskEntity) toModel(id string) model.Task {
	return model.Task{
		ID:        id,
		Owner:     e.Owner,
		Text:      e.Text,
		Status:    model.Status(e.Status),
		Priority:  model.Priority(e.Priority),
		Order:     e.Order,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// DatastoreTaskRepo stores one entity per task, keyed by a generated uuid name.
type DatastoreTaskRepo struct {
	ds *datastore.Client
}

func NewDatastoreTaskRepo(ds *datastore.Client) *DatastoreTaskRepo {
	return &DatastoreTaskRepo{ds: ds}
}

func (r *DatastoreTaskRepo) ListByOwner(ctx context.Context, owner string) ([]model.Task, error) {
	var entities []taskEntity
	keys, err := r.ds.GetAll(ctx, datastore.NewQuery(taskKind).FilterField("Owner", "=", owner), &entities)
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(keys))
	for i, key := range keys {
		tasks = append(tasks, entities[i].toModel(key.Name))
	}
	// Sorted here rather than in the query so no composite index is needed.
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r *DatastoreTaskRepo) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	now := time.Now().UTC()
	e := taskEntity{
		Owner:     t.Owner,
		Text:      t.Text,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		Order:     t.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id := uuid.NewString()
	if _, err := r.ds.Put(ctx, datastore.NameKey(taskKind, id, nil), &e); err != nil {
		return model.Task{}, err
	}
	return e.toModel(id), nil
}

func (r *DatastoreTaskRepo) Patch(ctx context.Context, owner, id string, p model.TaskPatch) error {
	if p.Empty() {
		return nil
	}
	key := datastore.NameKey(taskKind, id, nil)
	_, err := r.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e taskEntity
		if err := getOwned(tx, key, &e, func() string { return e.Owner }, owner); err != nil {
			return err
		}
		t := p.Apply(e.toModel(id))
		e.Text, e.Status, e.Priority, e.Order = t.Text, string(t.Status), string(t.Priority), t.Order
		e.UpdatedAt = time.Now().UTC()
		_, err := tx.Put(key, &e)
		return err
	})
	return err
}

func (r *DatastoreTaskRepo) Remove(ctx context.Context, owner, id string) error {
	key := datastore.NameKey(taskKind, id, nil)
	_, err := r.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e taskEntity
		if err := getOwned(tx, key, &e, func() string { return e.Owner }, owner); err != nil {
			return err
		}
		return tx.Delete(key)
	})
	return err
}

func (r *DatastoreTaskRepo) SetOrders(ctx context.Context, owner string, changes []model.OrderChange) error {
	if len(changes) == 0 {
		return nil
	}
	keys := make([]*datastore.Key, len(changes))
	for i, c := range changes {
		keys[i] = datastore.NameKey(taskKind, c.ID, nil)
	}

	_, err := r.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		entities := make([]taskEntity, len(keys))
		if err := tx.GetMulti(keys, entities); err != nil {
			var multi datastore.MultiError
			if errors.As(err, &multi) {
				return ErrorNotFound
			}
			return err
		}
		now := time.Now().UTC()
		for i := range entities {
			if entities[i].Owner != owner {
				return ErrorNotFound
			}
			entities[i].Order = changes[i].Order
			entities[i].UpdatedAt = now
		}
		_, err := tx.PutMulti(keys, entities)
		return err
	})
	return err
}

type noteEntity struct {
	Owner     string
	Content   string `datastore:",noindex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e noteEntity) toModel(id string) model.Note {
	return model.Note{ID: id, Owner: e.Owner, Content: e.Content, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

type DatastoreNoteRepo struct {
	ds *datastore.Client
}

func NewDatastoreNoteRepo(ds *datastore.Client) *DatastoreNoteRepo {
	return &DatastoreNoteRepo{ds: ds}
}

func (r *DatastoreNoteRepo) ListByOwner(ctx context.Context, owner string) ([]model.Note, error) {
	var entities []noteEntity
	keys, err := r.ds.GetAll(ctx, datastore.NewQuery(noteKind).FilterField("Owner", "=", owner), &entities)
	if err != nil {
		return nil, err
	}

	notes := make([]model.Note, 0, len(keys))
	for i, key := range keys {
		notes = append(notes, entities[i].toModel(key.Name))
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (r *DatastoreNoteRepo) Insert(ctx context.Context, n model.Note) (model.Note, error) {
	now := time.Now().UTC()
	e := noteEntity{Owner: n.Owner, Content: n.Content, CreatedAt: now, UpdatedAt: now}
	id := uuid.NewString()
	if _, err := r.ds.Put(ctx, datastore.NameKey(noteKind, id, nil), &e); err != nil {
		return model.Note{}, err
	}
	return e.toModel(id), nil
}

func (r *DatastoreNoteRepo) Patch(ctx context.Context, owner, id, content string) error {
	key := datastore.NameKey(noteKind, id, nil)
	_, err := r.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e noteEntity
		if err := getOwned(tx, key, &e, func() string { return e.Owner }, owner); err != nil {
			return err
		}
		e.Content = content
		e.UpdatedAt = time.Now().UTC()
		_, err := tx.Put(key, &e)
		return err
	})
	return err
}

func (r *DatastoreNoteRepo) Remove(ctx context.Context, owner, id string) error {
	key := datastore.NameKey(noteKind, id, nil)
	_, err := r.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e noteEntity
		if err := getOwned(tx, key, &e, func() string { return e.Owner }, owner); err != nil {
			return err
		}
		return tx.Delete(key)
	})
	return err
}

// getOwned loads key into dst and hides entities that belong to someone else.
func getOwned(tx *datastore.Transaction, key *datastore.Key, dst any, ownerOf func() string, owner string) error {
	if err := tx.Get(key, dst); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return ErrorNotFound
		}
		return err
	}
	if ownerOf() != owner {
		return ErrorNotFound
	}
	return nil
}
