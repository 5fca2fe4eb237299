package investigation

// CrisisResources returns the support message shown instead of a companion
// reply when a crisis signal is detected.
func CrisisResources(kind CrisisKind) string {
	switch kind {
	case CrisisSelfHarm:
		return "I'm really glad you told me. What you're feeling matters more than any of this. " +
			"If you are thinking about ending your life or hurting yourself, please reach out right now: " +
			"call or text 988 (Suicide & Crisis Lifeline, US) or your local emergency number. " +
			"You don't have to carry this alone."
	case CrisisDomesticViolence:
		return "Your safety comes first. If you are in immediate danger, call your local emergency number. " +
			"The National Domestic Violence Hotline (US) is available 24/7 at 1-800-799-7233, or text START to 88788. " +
			"We can pause the investigation while you get somewhere safe."
	case CrisisHarmToOthers:
		return "It sounds like you're carrying a lot of anger right now, and that's understandable. " +
			"Acting on it could hurt you and others and change your life in ways you can't undo. " +
			"If you feel you might act on these thoughts, please call 988 or your local emergency number and talk to someone now."
	}
	return ""
}
