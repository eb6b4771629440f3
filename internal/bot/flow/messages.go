package flow

import "fmt"

// User-facing reply texts. The bot speaks Ukrainian.
const (
	msgStart = "Привіт! Я бот для перегляду балансу Monobank.\nПідключи свій токен через /connect"

	msgConnectPrompt = "Надішли мені свій токен Monobank.\nОтримати його можна тут: https://api.monobank.ua/"

	msgConnectFirst = "❗ Спершу підключи токен через /connect"

	msgNoAccounts = "Рахунків не знайдено."

	msgEnterNumber = "Будь ласка, надішли число."

	msgFetchFailed = "⚠️ Не вдалося отримати дані з Monobank. Перевір токен або спробуй ще раз через /connect"

	msgStoreUnavailable = "⚠️ Сервіс тимчасово недоступний. Спробуй ще раз пізніше."
)

func msgTokenAccepted(name string) string {
	return fmt.Sprintf("✅ Токен прийнято. Вітаю, %s!", name)
}

func msgSelectionPrompt(n int, list string) string {
	return fmt.Sprintf("Обери основний рахунок, надішли число 1..%d:\n%s", n, list)
}

func msgOutOfRange(n int) string {
	return fmt.Sprintf("Число має бути в межах 1..%d.", n)
}

func msgSelected(index int) string {
	return fmt.Sprintf("✅ Рахунок #%d обрано основним.", index)
}
