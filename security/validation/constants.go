package validation

const (
	MaxShortTextLength = 128
	MaxLongTextLength  = 5120

	// MaxAddressLength fits an uncompressed hex public key.
	MaxAddressLength = 130
	// MaxSignatureLength fits a hex DER signature with room to spare.
	MaxSignatureLength = 512

	DefaultRequestBodyLimit = 128 * 1024 // 128 KB

	// Short text fields:
	SenderField    = "sender"
	RecipientField = "recipient"
	AmountField    = "amount"
	FeeField       = "fee"
	TxHashField    = "tx_hash"

	// Long text fields:
	SourceField    = "source"
	SignatureField = "signature"

	ClientIPKey = "clientIP"
)

var InjectionPatterns = []string{
	"${{", "{{", "}}", "${", "#{", "{%", "%}", "{{{", // templates/SSTI
	"%0a", "%0d", "%0a%0d", "%00", "%27", "%22", "%3c", "%3e", // encoded attacks (decode first)
	"${jndi:", "ldap://", "ldaps://", // JNDI/ldap
	"eval(", "exec(", "system(", "popen(", // dangerous funcs
}
