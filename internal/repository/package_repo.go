package repository

import (
	"context"
	"errors"

	"diamondshop/internal/model"

	"gorm.io/gorm"
)

var ErrPackageNotFound = errors.New("套餐不存在")

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*model.DiamondPackage, error) {
	var pkg model.DiamondPackage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) ListAll(ctx context.Context) ([]*model.DiamondPackage, error) {
	var pkgs []*model.DiamondPackage
	err := r.db.WithContext(ctx).Order("price_cents ASC").Find(&pkgs).Error
	return pkgs, err
}

// SeedDefaults 初始化默认套餐，按名称幂等
func (r *PackageRepository) SeedDefaults(ctx context.Context, pkgs []*model.DiamondPackage) error {
	for _, pkg := range pkgs {
		var total int64
		if err := r.db.WithContext(ctx).
			Model(&model.DiamondPackage{}).
			Where("name = ?", pkg.Name).
			Count(&total).Error; err != nil {
			return err
		}
		if total > 0 {
			continue
		}
		if err := r.db.WithContext(ctx).Create(pkg).Error; err != nil {
			return err
		}
	}
	return nil
}
