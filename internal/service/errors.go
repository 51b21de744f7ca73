package service

import "errors"

// 服务层错误分类：
//   - 校验失败：带人类可读原因返回给调用方，不重试
//   - 不存在：套餐/支付方式 ID 未知或不归属当前用户，不泄露是否存在于别的账户
//   - 处理失败：解密失败等内部问题，对外只给笼统提示，细节记日志
//   - 模拟拒绝：正常业务结果，不算错误，由结算结果携带消息返回
var (
	ErrCardInvalid     = errors.New("卡片校验失败")
	ErrMethodNotFound  = errors.New("支付方式不存在")
	ErrPackageNotFound = errors.New("套餐不存在")
	ErrProcessing      = errors.New("支付处理失败，请稍后重试")
	ErrDuplicateUser   = errors.New("用户名或邮箱已存在")
	ErrLoginFailed     = errors.New("用户名或密码错误")
)
