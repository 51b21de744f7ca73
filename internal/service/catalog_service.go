package service

import (
	"context"
	"errors"

	"diamondshop/internal/model"
	"diamondshop/internal/repository"
)

// CatalogService 钻石套餐目录，只读
// 套餐被订单引用后视为不可变（订单侧做快照）
type CatalogService struct {
	pkgRepo PackageRepo
}

func NewCatalogService(pkgRepo PackageRepo) *CatalogService {
	return &CatalogService{pkgRepo: pkgRepo}
}

func (s *CatalogService) ListPackages(ctx context.Context) ([]*model.DiamondPackage, error) {
	return s.pkgRepo.ListAll(ctx)
}

func (s *CatalogService) GetPackage(ctx context.Context, id int64) (*model.DiamondPackage, error) {
	pkg, err := s.pkgRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPackageNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return pkg, nil
}

// DefaultPackages 初始套餐目录（价格为美分，奈拉价按固定汇率换算展示）
func DefaultPackages() []*model.DiamondPackage {
	return []*model.DiamondPackage{
		{Name: "Starter Pack", Diamonds: 100, PriceCents: 99, OriginalCents: 199, PriceNGNCents: 158400, OriginalNGNCents: 318400, Discount: 50, Description: "新手入门"},
		{Name: "Elite Pack", Diamonds: 500, PriceCents: 499, OriginalCents: 699, PriceNGNCents: 798400, OriginalNGNCents: 1118400, Discount: 29, Popular: true, Description: "高性价比"},
		{Name: "Pro Pack", Diamonds: 1200, PriceCents: 999, OriginalCents: 1499, PriceNGNCents: 1598400, OriginalNGNCents: 2398400, Discount: 33, Description: "进阶玩家"},
		{Name: "VIP Pack", Diamonds: 2500, PriceCents: 1999, OriginalCents: 2999, PriceNGNCents: 3198400, OriginalNGNCents: 4798400, Discount: 33, Popular: true, Description: "热销款"},
		{Name: "Ultimate Pack", Diamonds: 5000, PriceCents: 3499, OriginalCents: 4999, PriceNGNCents: 5598400, OriginalNGNCents: 7998400, Discount: 30, Description: "顶配钻石包"},
		{Name: "Mega Pack", Diamonds: 10000, PriceCents: 6499, OriginalCents: 8999, PriceNGNCents: 10398400, OriginalNGNCents: 14398400, Discount: 28, Description: "重度玩家之选"},
	}
}
