package models

import (
	"context"

	"github.com/mmdatafocus/retail_backend/utils"
)

// tenantScoped is implemented by reference records that can be served from
// the Redis model cache. The cache key carries only the record id, so a hit
// must re-check the business before it is trusted.
type tenantScoped interface {
	tenantOf() string
}

// fetchCachedReference reads a reference record through the Redis model
// cache, falling back to the DB (tenant-scoped) on a miss and re-priming
// the cache. Cache errors are swallowed; the DB is the source of truth.
func fetchCachedReference[T tenantScoped](ctx context.Context, businessId string, id int) (*T, error) {
	cached, err := utils.RetrieveRedis[T](id)
	if err == nil && cached != nil && (*cached).tenantOf() == businessId {
		return cached, nil
	}
	result, err := utils.FetchModel[T](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[T](result, id)
	return result, nil
}
