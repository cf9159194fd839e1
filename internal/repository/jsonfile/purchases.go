package jsonfile

import (
	"context"
	"fmt"

	"github.com/vharuk/ticketd/internal/domain"
)

type PurchaseRepo struct {
	path string
}

func (r *PurchaseRepo) LoadAll(ctx context.Context) ([]domain.Purchase, error) {
	const op = "jsonfile.PurchaseRepo.LoadAll"

	purchases, err := readArray[domain.Purchase](r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return purchases, nil
}

func (r *PurchaseRepo) SaveAll(ctx context.Context, purchases []domain.Purchase) error {
	const op = "jsonfile.PurchaseRepo.SaveAll"

	if err := writeArray(r.path, purchases); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
