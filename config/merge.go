package config

// Merge returns inline with every top-level key present in external
// replacing the inline value. Nested values are replaced, not merged.
// A nil external leaves inline unchanged.
func Merge(inline Options, external *FileConfig) Options {
	if external == nil {
		return inline
	}

	merged := inline

	if external.Env != nil {
		merged.Env = *external.Env
	}
	if external.Targets != nil {
		merged.Targets = external.Targets
	}
	if external.Logger != nil {
		merged.Logger = *external.Logger
	}
	if external.RewriteRules != nil {
		merged.RewriteRules = external.RewriteRules
	}
	if external.Transport != nil {
		merged.Transport = *external.Transport
	}
	if external.DevOnly != nil {
		merged.DevOnly = *external.DevOnly
	}
	if external.Enabled != nil {
		enabled := *external.Enabled
		merged.Enabled = &enabled
	}
	if external.FilterAction != nil {
		merged.FilterAction = *external.FilterAction
	}
	if external.MaxBufferedBodyBytes != nil {
		merged.MaxBufferedBodyBytes = *external.MaxBufferedBodyBytes
	}

	return merged
}
