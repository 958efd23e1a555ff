package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Decimal places between the smallest on-chain unit and the display unit.
const (
	weiExponent     = 18
	satoshiExponent = 8
)

const (
	etherscanTxURL  = "https://etherscan.io/tx/"
	blockchainTxURL = "https://www.blockchain.com/btc/tx/"

	valueTemplate = "Transaction with an unusually high value of %s %s: %s%s. " +
		"Only one transaction had a comparable value in the last 7 days."
	gasCostTemplate = "Transaction with an unusually high gas cost of %s %s: %s%s. " +
		"Only one transaction had a comparable gas cost in the last 7 days."
)

// Render produces the alert text for an event. It returns false when no rule
// matches, in which case nothing should be delivered.
func Render(ev Event) (string, bool) {
	switch e := ev.(type) {
	case EthereumValue:
		return fmt.Sprintf(valueTemplate, FormatAmount(EtherFromWei(e.Value)), "ETH", etherscanTxURL, e.Hash), true
	case EthereumGasCost:
		return fmt.Sprintf(gasCostTemplate, FormatAmount(EtherFromWei(e.GasCost)), "ETH", etherscanTxURL, e.Hash), true
	case BitcoinValue:
		return fmt.Sprintf(valueTemplate, FormatAmount(BitcoinFromSatoshi(e.InputValue)), "BTC", blockchainTxURL, e.Hash), true
	default:
		return "", false
	}
}

// EtherFromWei scales a wei amount to ether.
func EtherFromWei(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-weiExponent)
}

// BitcoinFromSatoshi scales a satoshi amount to bitcoin.
func BitcoinFromSatoshi(sat decimal.Decimal) decimal.Decimal {
	return sat.Shift(-satoshiExponent)
}

// FormatAmount renders a non-zero amount with exactly two fraction digits and
// English digit grouping ("1,234.50"), rounding half away from zero. Zero is
// returned as its raw form ("0"), unformatted. The value is never converted to
// a float, so large amounts keep every digit.
func FormatAmount(v decimal.Decimal) string {
	if v.IsZero() {
		return v.String()
	}
	rounded := v.Round(2)
	intPart, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + groupThousands(intPart) + "." + frac
}

// groupThousands inserts English group separators into a string of digits.
func groupThousands(digits string) string {
	if n, err := strconv.ParseUint(digits, 10, 64); err == nil {
		return message.NewPrinter(language.English).Sprint(number.Decimal(n))
	}
	// Wider than uint64; the printer only takes native integers.
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
