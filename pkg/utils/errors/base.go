package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Common errors shared by all services (service code 00).
var (
	// ErrInvalidParam indicates invalid request parameters.
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))

	// ErrConflict indicates a resource conflict.
	ErrConflict = Register(New(MakeCode(ServiceCommon, CategoryConflict, 1), http.StatusConflict, codes.AlreadyExists, "Resource conflict", "资源冲突"))

	// ErrInternal indicates an unclassified internal error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrDatabase indicates a database failure.
	ErrDatabase = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 1), http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))

	// ErrCache indicates a cache failure.
	ErrCache = Register(New(MakeCode(ServiceCommon, CategoryCache, 1), http.StatusInternalServerError, codes.Internal, "Cache error", "缓存错误"))

	// ErrTimeout indicates an operation timeout.
	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Operation timeout", "操作超时"))
)
