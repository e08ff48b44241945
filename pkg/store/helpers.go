package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generic CRUD helpers shared by the store implementation files. They
// operate on the raw *gorm.DB and fold the recurring concerns into one
// place: context propagation, not-found mapping onto domain sentinels,
// and duplicate-key detection.

// getByField loads the single record of type T where field equals value.
// A missing row comes back as notFoundErr, never as a raw GORM error.
//
//	file, err := getByField[models.File](db, ctx, "id", fileID, models.ErrFileNotFound)
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, mapNotFound(err, notFoundErr)
	}
	return &result, nil
}

// listByField loads every record of type T where field equals value,
// ordered by the given clause. No matches is an empty slice, not an error.
//
//	jobs, err := listByField[models.Job](db, ctx, "file_id", fileID, "created_at ASC")
func listByField[T any](db *gorm.DB, ctx context.Context, field string, value any, order string) ([]*T, error) {
	var results []*T
	q := db.WithContext(ctx).Where(field+" = ?", value)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// listAll loads every record of type T, ordered by the given clause.
func listAll[T any](db *gorm.DB, ctx context.Context, order string) ([]*T, error) {
	var results []*T
	q := db.WithContext(ctx)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// createWithID inserts the entity, minting a UUID through idSetter when
// currentID is empty. A duplicate key comes back as dupErr.
//
//	id, err := createWithID(db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateEmail)
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, idSetter func(*T, string), currentID string, dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.New().String()
		idSetter(entity, id)
	}
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if isDuplicateKey(err) {
			return "", dupErr
		}
		return "", err
	}
	return id, nil
}
