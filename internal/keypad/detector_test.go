package keypad

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer перехватывает колбэк отсчета, чтобы тест сам решал,
// когда "истекло".
type fakeTimer struct {
	fired func()
}

func (f *fakeTimer) factory(_ time.Duration, fn func()) *time.Timer {
	f.fired = fn
	// Реальный таймер на час не успеет сработать в тесте.
	return time.NewTimer(time.Hour)
}

type hookCalls struct {
	started    int
	aborted    int
	dispatched int
}

func newTestDetector(t *testing.T, codes []string) (*Detector, *fakeTimer, *hookCalls) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	timer := &fakeTimer{}
	calls := &hookCalls{}
	hooks := Hooks{
		StartCapture: func() { calls.started++ },
		AbortCapture: func() { calls.aborted++ },
		Dispatch:     func() { calls.dispatched++ },
	}

	detector := NewDetector(codes, 10*time.Second, hooks, logger, WithTimerFactory(timer.factory))
	return detector, timer, calls
}

func typeDigits(d *Detector, digits string) {
	for _, r := range digits {
		d.Digit(r)
	}
}

func TestConfirm_ArmsOnTriggerCode(t *testing.T) {
	// Подготовка
	detector, _, calls := newTestDetector(t, []string{"911", "112"})

	// Действие: "9+1+1" выглядит как обычный пример, хвост буфера - код
	typeDigits(detector, "911")
	armed := detector.Confirm()

	// Проверки
	assert.True(t, armed)
	assert.Equal(t, StateArmed, detector.State())
	assert.Equal(t, 1, calls.started)
	assert.Equal(t, 0, calls.dispatched)
}

func TestConfirm_SuffixMatch(t *testing.T) {
	// Подготовка: код распознается по хвосту последовательности
	detector, _, calls := newTestDetector(t, []string{"911"})

	// Действие
	typeDigits(detector, "5911")
	armed := detector.Confirm()

	// Проверки
	assert.True(t, armed)
	assert.Equal(t, 1, calls.started)
}

func TestConfirm_NoMatchStaysIdle(t *testing.T) {
	// Подготовка
	detector, _, calls := newTestDetector(t, []string{"911"})

	// Действие
	typeDigits(detector, "123")
	armed := detector.Confirm()

	// Проверки
	assert.False(t, armed)
	assert.Equal(t, StateIdle, detector.State())
	assert.Equal(t, 0, calls.started)
}

func TestConfirm_BufferClearedBetweenAttempts(t *testing.T) {
	// Подготовка: буфер чистится на каждом "=", совпал код или нет
	detector, _, _ := newTestDetector(t, []string{"911"})

	// Действие: "91" + "=" , затем "1" + "="
	typeDigits(detector, "91")
	require.False(t, detector.Confirm())
	typeDigits(detector, "1")
	armed := detector.Confirm()

	// Проверки: последовательность не склеивается между попытками
	assert.False(t, armed)
	assert.Equal(t, StateIdle, detector.State())
}

func TestConfirm_IgnoredWhileArmed(t *testing.T) {
	// Подготовка
	detector, _, calls := newTestDetector(t, []string{"911"})
	typeDigits(detector, "911")
	require.True(t, detector.Confirm())

	// Действие: повторный код во время отсчета
	typeDigits(detector, "911")
	armed := detector.Confirm()

	// Проверки: второго взвода и второй записи нет
	assert.False(t, armed)
	assert.Equal(t, 1, calls.started)
}

func TestCancel_DuringCountdown(t *testing.T) {
	// Подготовка
	detector, timer, calls := newTestDetector(t, []string{"911"})
	typeDigits(detector, "911")
	require.True(t, detector.Confirm())

	// Действие: отмена на середине отсчета
	detector.Cancel()

	// Проверки: запись оборвана, вызова не будет
	assert.Equal(t, StateIdle, detector.State())
	assert.Equal(t, 1, calls.aborted)

	// Даже если таймер все же сработает, создания нет
	timer.fired()
	assert.Equal(t, 0, calls.dispatched)
}

func TestCancel_Idempotent(t *testing.T) {
	// Подготовка
	detector, _, calls := newTestDetector(t, []string{"911"})
	typeDigits(detector, "911")
	require.True(t, detector.Confirm())

	// Действие
	detector.Cancel()
	detector.Cancel()
	detector.Cancel()

	// Проверки: AbortCapture идемпотентен со стороны детектора
	assert.Equal(t, 1, calls.aborted)
}

func TestExpire_DispatchesExactlyOnce(t *testing.T) {
	// Подготовка
	detector, timer, calls := newTestDetector(t, []string{"911"})
	typeDigits(detector, "911")
	require.True(t, detector.Confirm())

	// Действие: отсчет истекает, затем таймер "дребезжит"
	timer.fired()
	timer.fired()
	timer.fired()

	// Проверки: одно срабатывание - ровно одно создание
	assert.Equal(t, 1, calls.dispatched)
	assert.Equal(t, StateIdle, detector.State())
}

func TestExpire_ThenNewTrigger(t *testing.T) {
	// Подготовка: после завершенного цикла детектор снова готов
	detector, timer, calls := newTestDetector(t, []string{"911"})
	typeDigits(detector, "911")
	require.True(t, detector.Confirm())
	timer.fired()

	// Действие
	typeDigits(detector, "911")
	armed := detector.Confirm()
	timer.fired()

	// Проверки
	assert.True(t, armed)
	assert.Equal(t, 2, calls.started)
	assert.Equal(t, 2, calls.dispatched)
}
