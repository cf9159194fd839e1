package jsonfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/vharuk/ticketd/internal/domain"
	"github.com/vharuk/ticketd/internal/repository"
)

type EventRepo struct {
	path string
}

func (r *EventRepo) List(ctx context.Context) ([]domain.Event, error) {
	const op = "jsonfile.EventRepo.List"

	events, err := readArray[domain.Event](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

func (r *EventRepo) FindByID(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "jsonfile.EventRepo.FindByID"

	events, err := readArray[domain.Event](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range events {
		if events[i].ID == id {
			return &events[i], nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func (r *EventRepo) FindByName(ctx context.Context, name string) (*domain.Event, error) {
	const op = "jsonfile.EventRepo.FindByName"

	events, err := readArray[domain.Event](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	want := strings.TrimSpace(name)
	for i := range events {
		if strings.EqualFold(strings.TrimSpace(events[i].Name), want) {
			return &events[i], nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func (r *EventRepo) Save(ctx context.Context, event *domain.Event) error {
	const op = "jsonfile.EventRepo.Save"

	events, err := readArray[domain.Event](r.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	replaced := false
	for i := range events {
		if events[i].ID == event.ID {
			events[i] = *event
			replaced = true
			break
		}
	}

	if !replaced {
		events = append(events, *event)
	}

	if err := writeArray(r.path, events); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	const op = "jsonfile.EventRepo.Delete"

	events, err := readArray[domain.Event](r.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	idx := -1
	for i := range events {
		if events[i].ID == id {
			idx = i
			break
		}
	}

	if idx == -1 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	events = append(events[:idx], events[idx+1:]...)

	if err := writeArray(r.path, events); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
