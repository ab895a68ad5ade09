package service

// User-facing replies.
const (
	MsgRefusal          = "Sorry, I can't help with that. I'm here to help you keep track of your money. 💰"
	MsgUnavailable      = "I'm having trouble thinking right now. Please try again in a few moments. 🙏"
	MsgTechnicalError   = "Sorry, something went wrong while processing your message. Please try again."
	MsgConfused         = "I got a little confused. 😅 Could you rephrase that?"
	MsgSaveFailed       = "❌ I understood your transaction but couldn't save it. Please send it again."
	MsgInternalError    = "⚠️ Internal error. Please try again later; the details are in our logs."
	MsgToolFailed       = "Sorry, I couldn't complete that action right now."
	MsgConfirmed        = "✅ Great, transaction confirmed!"
	MsgAskResend        = "No problem! Please send me the correct information (e.g. \"Lunch 25.90\")."
	MsgNoAmount         = "I couldn't find any amount in your message. How much was it?"
	MsgUnsupportedMedia = "Sorry, I can only read text, photos of receipts and OFX/CSV statements for now."
	MsgEmptyStatement   = "I couldn't find any transactions in that file."
	MsgMediaDownload    = "I couldn't download your file. Please send it again."
)
