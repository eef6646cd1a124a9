package repository

import (
	"context"
	"errors"

	"bookmarker/internal/apperr"
	"bookmarker/internal/model"

	"gorm.io/gorm"
)

// UserRepository 定义用户的存储契约
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 返回基于 GORM 的用户仓库
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	const op = "repository.user.Create"

	if err := r.checkTaken(ctx, user); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发注册：再查一次以给出具体的冲突字段
		if err := r.checkTaken(ctx, user); err != nil {
			return err
		}
		return apperr.New(op, apperr.Conflict, "username or email has already been used")
	}
	return apperr.E(op, apperr.Internal, err)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	return r.first(ctx, "repository.user.GetByID", "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "repository.user.GetByEmail", "email = ?", email)
}

// Delete 删除用户及其全部书签
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	const op = "repository.user.Delete"

	// 显式删除关联书签，不依赖驱动是否启用外键
	result := r.db.WithContext(ctx).Select("Bookmarks").Delete(&model.User{ID: id})
	if result.Error != nil {
		return apperr.E(op, apperr.Internal, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.New(op, apperr.NotFound, "user not found")
	}
	return nil
}

func (r *userRepository) first(ctx context.Context, op, query string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(op, apperr.NotFound, "user not found")
		}
		return nil, apperr.E(op, apperr.Internal, err)
	}
	return &user, nil
}

func (r *userRepository) checkTaken(ctx context.Context, user *model.User) error {
	const op = "repository.user.Create"

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return apperr.E(op, apperr.Internal, err)
	}
	if count > 0 {
		return apperr.New(op, apperr.Conflict, "username has already been used")
	}

	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return apperr.E(op, apperr.Internal, err)
	}
	if count > 0 {
		return apperr.New(op, apperr.Conflict, "email has already been used")
	}
	return nil
}
