package service

import (
	"errors"

	apperrors "github.com/lk2023060901/video-share-backend/internal/pkg/errors"
	"github.com/lk2023060901/video-share-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
)

// toAppError maps domain errors onto API error codes
func toAppError(err error) *apperrors.AppError {
	var verr *biz.ValidationError
	switch {
	case errors.As(err, &verr):
		code := apperrors.ErrVideoInvalidFile
		switch verr.Field {
		case "size":
			code = apperrors.ErrVideoFileTooLarge
		case "type":
			code = apperrors.ErrVideoUnsupportedType
		}
		return apperrors.Wrap(err, code, verr.Error())
	case errors.Is(err, biz.ErrNotFound):
		return apperrors.Wrap(err, apperrors.ErrVideoNotFound, "")
	case errors.Is(err, biz.ErrUploadFailed):
		return apperrors.Wrap(err, apperrors.ErrVideoUploadFailed, "storage is unreachable, please try again")
	case errors.Is(err, biz.ErrMetadataWriteFailed):
		return apperrors.Wrap(err, apperrors.ErrVideoMetadataFailed, "")
	case errors.Is(err, workerpool.ErrPoolOverload):
		return apperrors.Wrap(err, apperrors.ErrVideoUploadBusy, "")
	default:
		return apperrors.Wrap(err, apperrors.ErrInternalServer, "")
	}
}
