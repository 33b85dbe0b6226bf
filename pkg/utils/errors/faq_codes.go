package errors

import "google.golang.org/grpc/codes"

// FAQ 服务错误码: 20 (业务服务范围 20-79)
var (
	// 请求参数错误 (类别 01)
	ErrFAQInvalidRequest  = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrFAQMissingFilename = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 2), 400, codes.InvalidArgument, "Filename is required", "文件名不能为空"))
	ErrFAQFileType        = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 3), 400, codes.InvalidArgument, "Only .txt and .md files are supported", "仅支持 .txt 和 .md 文件"))
	ErrFAQFileTooLarge    = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 4), 400, codes.InvalidArgument, "File too large", "文件过大"))
	ErrFAQEmptyFile       = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 5), 400, codes.InvalidArgument, "File is empty", "文件内容为空"))
	ErrFAQFileEncoding    = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 6), 400, codes.InvalidArgument, "File must be UTF-8 encoded text", "文件必须是 UTF-8 编码的文本"))
	ErrFAQUnknownProvider = Register(New(MakeCode(ServiceFAQ, CategoryRequest, 7), 400, codes.InvalidArgument, "Provider is not registered or not configured", "供应商未注册或未配置"))

	// 生成与索引错误 (类别 07)
	ErrFAQGenerationFailed = Register(New(MakeCode(ServiceFAQ, CategoryInternal, 1), 500, codes.Internal, "Failed to generate answer. Please try again later.", "生成回答失败，请稍后重试"))
	ErrFAQIngestionFailed  = Register(New(MakeCode(ServiceFAQ, CategoryInternal, 2), 500, codes.Internal, "Failed to process document. Please try again later.", "文档处理失败，请稍后重试"))

	// 查询日志 (类别 08)
	ErrFAQHistoryUnavailable = Register(New(MakeCode(ServiceFAQ, CategoryDatabase, 1), 503, codes.Unavailable, "Query history is unavailable", "查询历史不可用"))
)
