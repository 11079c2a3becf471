package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy of the error carrying a more specific message.
// 用于透传外部系统的原始拒绝原因 (例如风控)。
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Withdrawal validation errors (20300+)
// 提现前置校验失败: 同步返回，不产生任何余额变动
var (
	ErrInvalidAddress      = Errno{Code: 20301, Message: "Invalid destination address"}
	ErrAssetNotFound       = Errno{Code: 20302, Message: "Asset not found"}
	ErrWithdrawDisabled    = Errno{Code: 20303, Message: "Withdrawals are disabled for this asset"}
	ErrAmountOutOfRange    = Errno{Code: 20304, Message: "Amount outside the allowed withdrawal range"}
	ErrInsufficientBalance = Errno{Code: 20305, Message: "Insufficient balance"}
	ErrRiskRejected        = Errno{Code: 20306, Message: "Rejected by risk control"}
)

// Configuration errors (21000+)
// 配置缺失属于运维故障: 记录后放弃本次操作，不自动重试
var (
	ErrSigningKey     = Errno{Code: 21001, Message: "Signing key unavailable"}
	ErrNoHotWallet    = Errno{Code: 21002, Message: "No active custodial hot wallet configured"}
	ErrExplorerConfig = Errno{Code: 21003, Message: "Explorer credentials missing"}
)

// External failures (22000+)
var (
	ErrChainSubmit = Errno{Code: 22001, Message: "On-chain submission failed"}
	ErrChainQuery  = Errno{Code: 22002, Message: "Chain query failed"}
)
