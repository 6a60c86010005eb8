// Globals for aifo-stfq-tc

package astc

const ASTC_APP_NAME = "aifo-stfq-tc"

var (
	GlobalAstcConfig *AstcConfig
)
