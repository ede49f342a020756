package handler

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}

	switch roster.KindOf(err) {
	case roster.KindForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case roster.KindNotEligible:
		return status.Error(codes.FailedPrecondition, err.Error())
	case roster.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case roster.KindInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
