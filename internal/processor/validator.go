package processor

import (
	"strings"
	"time"

	"diamondshop/internal/model"
)

// CardValidator 卡片格式校验器，无状态
// 是否启用 Luhn 校验由配置决定（部署级开关，默认开启）
type CardValidator struct {
	enforceLuhn bool
	now         func() time.Time // 可注入，便于测试过期判断
}

func NewCardValidator(enforceLuhn bool) *CardValidator {
	return &CardValidator{
		enforceLuhn: enforceLuhn,
		now:         time.Now,
	}
}

// Validate 校验卡号/有效期/CVV
// 返回 (是否通过, 失败原因)
func (v *CardValidator) Validate(cardNumber string, expiryMonth, expiryYear int, cvv string) (bool, string) {
	number := NormalizeCardNumber(cardNumber)

	if len(number) < 13 || len(number) > 19 {
		return false, "卡号长度不合法"
	}

	if !isDigits(number) {
		return false, "卡号只能包含数字"
	}

	if expiryMonth < 1 || expiryMonth > 12 {
		return false, "有效期月份不合法"
	}

	// (年, 月) 严格早于当前 (年, 月) 即过期，当月仍然有效
	now := v.now()
	if expiryYear < now.Year() ||
		(expiryYear == now.Year() && expiryMonth < int(now.Month())) {
		return false, "卡片已过期"
	}

	if len(cvv) != 3 && len(cvv) != 4 {
		return false, "CVV 不合法"
	}
	if !isDigits(cvv) {
		return false, "CVV 不合法"
	}

	if v.enforceLuhn && !LuhnValid(number) {
		return false, "卡号校验失败"
	}

	return true, "卡片校验通过"
}

// NormalizeCardNumber 去掉卡号中的空格
func NormalizeCardNumber(cardNumber string) string {
	return strings.ReplaceAll(cardNumber, " ", "")
}

// LuhnValid Luhn 校验和
// 从最右位起，偶数位乘2，大于9则减9，总和模10为0则通过
func LuhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ClassifyBrand 根据卡号前缀推导卡品牌，纯函数
// 前缀重叠时最长/最具体的优先（如 6011 优先于 6）
func ClassifyBrand(cardNumber string) string {
	number := NormalizeCardNumber(cardNumber)
	if number == "" || !isDigits(number) {
		return model.CardBrandUnknown
	}

	switch {
	case strings.HasPrefix(number, "4"):
		return model.CardBrandVisa
	case hasPrefixInRange(number, 51, 55):
		return model.CardBrandMastercard
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return model.CardBrandAmex
	case hasPrefixInRange3(number, 300, 305),
		strings.HasPrefix(number, "36"),
		strings.HasPrefix(number, "38"):
		return model.CardBrandDiners
	case strings.HasPrefix(number, "6011"), strings.HasPrefix(number, "6"):
		return model.CardBrandDiscover
	default:
		return model.CardBrandUnknown
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// hasPrefixInRange 两位数字前缀是否落在 [lo, hi]
func hasPrefixInRange(number string, lo, hi int) bool {
	if len(number) < 2 {
		return false
	}
	p := int(number[0]-'0')*10 + int(number[1]-'0')
	return p >= lo && p <= hi
}

// hasPrefixInRange3 三位数字前缀是否落在 [lo, hi]
func hasPrefixInRange3(number string, lo, hi int) bool {
	if len(number) < 3 {
		return false
	}
	p := int(number[0]-'0')*100 + int(number[1]-'0')*10 + int(number[2]-'0')
	return p >= lo && p <= hi
}
