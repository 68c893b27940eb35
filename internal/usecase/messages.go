package usecase

// User-facing service texts. Full i18n lives outside this pipeline; the
// worker only needs a handful of short notices.

func topUpMessage(lang string) string {
	if lang == "ru" {
		return "У вас закончились чтения. Пополните баланс, чтобы продолжить."
	}
	return "You are out of readings. Top up your balance to continue."
}

func refundMessage(lang string) string {
	if lang == "ru" {
		return "Не получилось подготовить чтение. Кредит возвращён на ваш баланс."
	}
	return "We could not prepare your reading. Your credit has been returned."
}

func topicCoveredMessage(lang string) string {
	if lang == "ru" {
		return "Эта тема уже раскрыта для вашего фото. Выберите другую."
	}
	return "This topic is already covered for your photo. Pick another one."
}

func nudgeMessage(lang string) string {
	if lang == "ru" {
		return "Давно не виделись! Пришлите новое фото, и узнаем, что вас ждёт."
	}
	return "It has been a while! Send a new photo and let's see what awaits you."
}
