package scheduler

import (
	"fmt"

	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// injectSecrets upserts the provider credential for conn's bucket scope,
// per §4.C ("scope = bucket URI"). Connection kinds with no bucket-scoped
// credential (rowdb, warehouse, rest, deltatable, variable, llmsql, custom)
// are no-ops here; their connectors read credentials directly off cfg.
func (s *Scheduler) injectSecrets(conn *model.Connection, cfg *model.ConnectionConfiguration) {
	if cfg == nil {
		return
	}
	switch conn.Kind {
	case model.ConnS3:
		if cfg.S3 == nil {
			return
		}
		scope := fmt.Sprintf("s3://%s", cfg.S3.Bucket)
		s.Adapter.InjectSecrets(scope, sqlrt.ProviderSecret{
			Provider: "s3",
			Config: map[string]string{
				"region":            cfg.S3.Region,
				"access_key_id":     cfg.S3.AccessKeyID,
				"secret_access_key": cfg.S3.SecretAccessKey,
				"session_token":     cfg.S3.SessionToken,
			},
		})
	case model.ConnGS:
		if cfg.GS == nil {
			return
		}
		scope := fmt.Sprintf("gs://%s", cfg.GS.Bucket)
		s.Adapter.InjectSecrets(scope, sqlrt.ProviderSecret{
			Provider: "gs",
			Config: map[string]string{
				"region":               cfg.GS.Region,
				"service_account_json": cfg.GS.ServiceAccountJSON,
				"service_account_path": cfg.GS.ServiceAccountPath,
			},
		})
	}
}
