package bot

const (
	ApologyMessage = "😓 Something went wrong on my side. Please try again in a moment."

	UnsupportedMessage = "I can only read text messages and receipt photos 📸. Try: Spent 250 on lunch"

	RephraseMessage = "🤔 I couldn't work out that expense. Try rephrasing it like:\n" +
		"• Spent 250 on lunch\n" +
		"• Paid 1200 for electricity bill\n" +
		"• Uber 180 to the airport"

	ReceiptFailedMessage = "🧾 I couldn't read a total from that photo. Try a clearer picture of the whole receipt, or type it: Spent 540 at DMart"

	MediaFailedMessage = "⚠️ I couldn't download that image. Please send it again."

	SearchTooShortMessage = "🔍 Search term is too short. Use at least 3 characters, e.g. search coffee"

	NothingToDeleteMessage = "Nothing to delete, you have no expenses yet."

	NothingToEditMessage = "Nothing to edit, you have no expenses yet."

	SetBudgetUsage = "Usage: set budget <category> <amount>\nExample: set budget food 5000"

	EditUsage = "Usage: edit amount <amount> or edit category <category>\nExample: edit last amount 300"

	FallbackMessage = "🤷 Sorry, I didn't understand that. Try:\n" +
		"• Spent 250 on lunch\n" +
		"• today\n" +
		"• set budget food 5000\n" +
		"Send *help* to see everything I can do."

	HelpMessage = "👋 *Expense bot*\n\n" +
		"*Log expenses*\n" +
		"• Spent 250 on lunch\n" +
		"• Uber 180\n" +
		"• Send a photo of a receipt 📸\n\n" +
		"*Reports*\n" +
		"• today / week / month\n" +
		"• categories (last 30 days)\n" +
		"• insights\n" +
		"• search <text>\n\n" +
		"*Budgets*\n" +
		"• set budget <category> <amount>\n" +
		"• budget\n\n" +
		"*Fix mistakes*\n" +
		"• undo\n" +
		"• edit amount <amount>\n" +
		"• edit category <category>\n\n" +
		"Categories: food, transport, shopping, entertainment, healthcare, utilities, other"
)
