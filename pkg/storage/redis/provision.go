package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rhuss/sellside/pkg/storage"
)

// PutTenant writes a tenant and its lookup indexes. Returns
// storage.ErrConflict if the subdomain or virtual host already points at a
// different tenant. Index keys left over from a previous subdomain or virtual
// host are removed.
func (s *Store) PutTenant(ctx context.Context, t storage.Tenant) error {
	if t.ID == "" {
		return fmt.Errorf("tenant id is required")
	}
	t.Subdomain = strings.ToLower(t.Subdomain)
	t.VirtualHost = storage.NormalizeHost(t.VirtualHost)
	if t.Status == "" {
		t.Status = storage.StatusActive
	}

	prev, err := s.client.HMGet(ctx, s.tenantKey(t.ID), "subdomain", "virtual_host").Result()
	if err != nil {
		return fmt.Errorf("reading tenant: %w", err)
	}
	oldSub, _ := prev[0].(string)
	oldHost, _ := prev[1].(string)

	if t.Subdomain != "" {
		if err := s.claim(ctx, s.subdomainKey(t.Subdomain), t.ID); err != nil {
			return fmt.Errorf("subdomain %q: %w", t.Subdomain, err)
		}
	}
	if t.VirtualHost != "" {
		if err := s.claim(ctx, s.vhostKey(t.VirtualHost), t.ID); err != nil {
			if t.Subdomain != "" && t.Subdomain != oldSub {
				s.client.Del(ctx, s.subdomainKey(t.Subdomain))
			}
			return fmt.Errorf("virtual host %q: %w", t.VirtualHost, err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tenantKey(t.ID),
			"subdomain", t.Subdomain,
			"virtual_host", t.VirtualHost,
			"status", string(t.Status),
		)
		if oldSub != "" && oldSub != t.Subdomain {
			pipe.Del(ctx, s.subdomainKey(oldSub))
		}
		if oldHost != "" && oldHost != t.VirtualHost {
			pipe.Del(ctx, s.vhostKey(oldHost))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing tenant: %w", err)
	}
	return nil
}

// claim points an index key at id unless another tenant already owns it.
func (s *Store) claim(ctx context.Context, key, id string) error {
	ok, err := s.client.SetNX(ctx, key, id, 0).Result()
	if err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	if ok {
		return nil
	}
	owner, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	if owner != id {
		return storage.ErrConflict
	}
	return nil
}

// maxTxRetries bounds optimistic-lock retries in PutPrincipal.
const maxTxRetries = 5

// PutPrincipal writes a principal under its token hash. Returns
// storage.ErrConflict if a different principal of the same tenant already
// holds the token. When the principal's token changes, the entry under the
// previous token hash is removed so the old token stops authenticating.
func (s *Store) PutPrincipal(ctx context.Context, p storage.Principal) error {
	if p.ID == "" || p.TenantID == "" {
		return fmt.Errorf("principal id and tenant id are required")
	}
	status := p.Status
	if status == "" {
		status = storage.StatusActive
	}
	raw, err := json.Marshal(principalRecord{PrincipalID: p.ID, Status: string(status)})
	if err != nil {
		return fmt.Errorf("encoding principal: %w", err)
	}

	key := s.tokenKey(p.AccessToken)
	index := s.principalKey(p.TenantID, p.ID)

	write := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, p.TenantID).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("reading principal: %w", err)
		default:
			existing, err := decodePrincipal(p.TenantID, current)
			if err != nil {
				return err
			}
			if existing.ID != p.ID {
				return fmt.Errorf("token for tenant %q: %w", p.TenantID, storage.ErrConflict)
			}
		}

		old, err := tx.Get(ctx, index).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("reading principal index: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" && old != key {
				pipe.HDel(ctx, old, p.TenantID)
			}
			pipe.HSet(ctx, key, p.TenantID, raw)
			pipe.Set(ctx, index, key, 0)
			return nil
		})
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("writing principal: %w", err)
		}
		return err
	}

	for range maxTxRetries {
		err = s.client.Watch(ctx, write, key, index)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("writing principal: %w", err)
	}
	return err
}
