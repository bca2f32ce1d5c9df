package proctorRepository

import (
	"ProctorEngine/internal/entity"
	contextPkg "ProctorEngine/pkg/context"
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func (r *flagRepository) CreateFlag(ctx context.Context, flag entity.ProctorFlag) error {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"id":               flag.ID,
		"session_id":       flag.SessionID,
		"flag_type":        flag.FlagType,
		"confidence_score": flag.Confidence,
		"source":           flag.Source,
		"details":          flag.Details,
		"created_at":       flag.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateFlag, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CreateFlag named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating proctoring flag")
		return err
	}

	return nil
}

func (r *flagRepository) GetFlagsBySessionID(ctx context.Context, sessionID string) ([]entity.ProctorFlag, error) {
	requestID := contextPkg.GetRequestID(ctx)
	flags := make([]entity.ProctorFlag, 0)

	argsKV := map[string]interface{}{
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetFlagsBySessionID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetFlagsBySessionID named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &flags, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetFlagsBySessionID execution err")
		return nil, err
	}

	return flags, nil
}
