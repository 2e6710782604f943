package messages

// Default returns the built-in Russian texts.
func Default() Texts {
	return Texts{
		Start: `Здравствуйте, {{ first_name }}! 👋

Рады приветствовать вас в программе поддержки!

📚 Мы подготовили для вас полезные материалы по управлению стрессом и тревожностью.

🔑 Чтобы получить материалы, напишите кодовое слово.

После этого вы получите доступ к файлу с практическими инструментами и специальное предложение от нашего психолога.`,

		Help: `📚 Доступные команды:

/start - Начать работу с ботом
/help - Показать это сообщение
/id - Ваш статус
/unsubscribe - Отписаться от рассылки

Введите кодовое слово, чтобы получить полезные материалы.`,

		WrongCodeWord: `❌ Неверное кодовое слово.

Пожалуйста, введите правильное кодовое слово, чтобы получить доступ к материалам.

Если вы не знаете кодовое слово, обратитесь к организатору программы.`,

		AlreadyReceived: `Вы уже получали материалы! Если у вас остались вопросы, напишите администратору{% if admin_username != "" %} @{{ admin_username }}{% endif %}.`,

		Welcome: `Спасибо! 🎁 Отправляем вам материалы.`,

		DocumentCaption: ``,

		DocumentMissing: `❌ Извините, файл пока недоступен. Обратитесь к администратору.`,

		DocumentFailed: `❌ Произошла ошибка при отправке файла. Попробуйте позже.`,

		Offer: `Надеемся, материалы оказались полезными! 💙

Наш психолог готов провести для вас бесплатную консультацию: разберём, что именно вызывает напряжение, и подберём техники под вашу ситуацию.

Чтобы записаться, отправьте имя и номер телефона одним сообщением.
📝 Например: Иван Петров +79991234567`,

		OfferButton: `📞 Оставить заявку`,

		ContactHint: `Пожалуйста, отправьте ваше имя и номер телефона для консультации.

📝 Формат: Имя Фамилия +79991234567
Например: Иван Петров +79991234567

Или нажмите кнопку ниже, чтобы поделиться контактом.`,

		ShareContactButton: `📱 Поделиться контактом`,

		InvalidPhone: `❌ Неправильный формат номера телефона.

Пожалуйста, укажите номер в одном из форматов:
• +79991234567
• 89991234567
• 79991234567

Например: Иван Петров +79991234567`,

		ThankYou: `Спасибо, {{ name }}! ✅ Мы получили ваши контакты и скоро свяжемся с вами.`,

		ContactKnown: `Спасибо! Мы уже получили ваши контакты и скоро свяжемся с вами.

Если у вас есть вопросы, можете написать администратору.`,

		Warmup1: `Как ваши дела? 🌿 Вы уже попробовали упражнения из материалов?

Если хочется разобраться глубже, запишитесь на бесплатную консультацию: просто пришлите имя и номер телефона.`,

		Warmup2: `Напоминаем о бесплатной консультации с психологом 💬

Места ограничены. Пришлите имя и номер телефона, и мы подберём удобное время.`,

		AdminNotification: `🔔 Новая заявка на консультацию!

👤 Имя: {{ name }}
📞 Телефон: {{ phone }}
🆔 ID: {{ user_id }}
📱 Username: @{{ username }}
📅 Дата: {{ date }}`,

		Unsubscribed: `Вы отписались от рассылки. Чтобы снова получать сообщения, свяжитесь с администратором.`,

		AlreadyUnsubscribed: `Вы уже отписаны от рассылки.`,

		NotRegistered: `Вы ещё не в базе. Введите кодовое слово.`,

		NotAdmin: `У вас нет доступа к этой команде.`,

		Identity: `🆔 Ваша информация:

ID: {{ user_id }}
Username: @{{ username }}
Имя: {{ first_name }}

Вы админ: {% if is_admin %}✅ ДА{% else %}❌ НЕТ{% endif %}
{% if registered %}
Статус в воронке: {{ status }}
Контакт предоставлен: {% if contact_provided %}✅ ДА{% else %}❌ НЕТ{% endif %}
Подписка: {% if subscribed %}✅ ДА{% else %}❌ НЕТ{% endif %}{% else %}
Вы ещё не в базе. Введите кодовое слово.{% endif %}`,

		Stats: `📊 Статистика воронки:

👥 Всего пользователей: {{ total }}
✅ Оставили контакт: {{ with_contact }}
⏳ Без контакта: {{ without_contact }}
🔔 Подписаны: {{ subscribed }}
📈 Конверсия: {{ conversion }}%

По статусам:
{% for row in by_status %}• {{ row.status }}: {{ row.count }}
{% endfor %}`,

		BroadcastUsage: `Использование: /{{ command }} <текст сообщения>
Или ответьте этой командой на сообщение, чтобы разослать его копию.
Получатели: {{ audience }}`,

		BroadcastEmpty: `Нет получателей ({{ audience }}) для рассылки.`,

		BroadcastStarted: `📤 Начинаю рассылку: {{ total }} получателей ({{ audience }})...`,

		BroadcastDone: `✅ Рассылка завершена!

Успешно: {{ sent }}
Ошибок: {{ failed }}`,

		InternalError: `⚠️ Что-то пошло не так. Попробуйте позже.`,
	}
}
