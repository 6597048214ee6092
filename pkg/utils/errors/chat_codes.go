package errors

import "google.golang.org/grpc/codes"

// 支持聊天服务代码: 20, 知识库服务代码: 21
// 错误码格式: AABBCCC

var (
	// 请求参数错误 (类别 01)
	ErrChatInvalidRequest = Register(New(MakeCode(ServiceChat, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrChatEmptyMessage   = Register(New(MakeCode(ServiceChat, CategoryRequest, 2), 400, codes.InvalidArgument, "Message must not be empty", "消息不能为空"))

	// 会话相关错误
	ErrChatSessionNotFound = Register(New(MakeCode(ServiceChat, CategoryResource, 1), 404, codes.NotFound, "Session not found or expired", "会话不存在或已过期"))
	ErrChatSessionEnded    = Register(New(MakeCode(ServiceChat, CategoryConflict, 1), 409, codes.FailedPrecondition, "Session already ended", "会话已结束"))

	// 生成相关错误
	ErrChatGenerationFailed = Register(New(MakeCode(ServiceChat, CategoryInternal, 1), 500, codes.Internal, "Answer generation failed", "回答生成失败"))
	ErrChatQueryTimeout     = Register(New(MakeCode(ServiceChat, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Query timeout", "查询超时"))

	// 文档摄取错误 (知识库服务)
	ErrDocInvalidUpload     = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid document upload", "文档上传无效"))
	ErrDocExtractionFailed  = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 2), 422, codes.InvalidArgument, "Document text extraction failed", "文档文本提取失败"))
	ErrDocEmpty             = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 3), 422, codes.InvalidArgument, "Document yielded no indexable content", "文档无可索引内容"))
	ErrDocNotFound          = Register(New(MakeCode(ServiceKnowledge, CategoryResource, 1), 404, codes.NotFound, "Document not found", "文档不存在"))
	ErrDocDeleteUnsupported = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 4), 501, codes.Unimplemented, "Document deletion is not supported yet", "暂不支持删除文档"))
	ErrIndexFailed          = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 1), 500, codes.Internal, "Vector index write failed", "向量索引写入失败"))
	ErrIndexNotReady        = Register(New(MakeCode(ServiceKnowledge, CategoryNetwork, 1), 503, codes.Unavailable, "Vector index not ready", "向量索引未就绪"))
	ErrKnowledgeUnavailable = Register(New(MakeCode(ServiceKnowledge, CategoryNetwork, 2), 503, codes.Unavailable, "Knowledge base unavailable", "知识库不可用"))

	// 第三方 LLM 服务错误
	ErrEmbeddingFailed  = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), 502, codes.Unavailable, "Embedding provider request failed", "向量化服务请求失败"))
	ErrLLMUnavailable   = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 2), 503, codes.Unavailable, "LLM provider unavailable", "大模型服务不可用"))
	ErrLLMInvalidOutput = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryInternal, 1), 500, codes.Internal, "LLM provider returned invalid output", "大模型返回内容无效"))
)
