// Package keypad реализует скрытый триггер экстренного вызова внутри
// обычной клавиатуры калькулятора. Машина состояний не подает никаких
// видимых сигналов о смене режима: снаружи калькулятор продолжает
// вести себя как калькулятор.
package keypad

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State - состояние детектора.
type State int

const (
	// StateIdle - обычный ввод, триггер не сработал.
	StateIdle State = iota
	// StateArmed - код распознан, идет обратный отсчет, запись начата.
	StateArmed
	// StateDispatching - отсчет истек, выполняется создание вызова.
	StateDispatching
)

// Hooks - действия, которыми детектор управляет снаружи.
// Все вызовы приходят последовательно; Dispatch за одно срабатывание
// вызывается ровно один раз.
type Hooks struct {
	// StartCapture начинает запись аудио и наблюдение за позицией.
	StartCapture func()
	// AbortCapture останавливает и то и другое; обязан быть идемпотентным.
	AbortCapture func()
	// Dispatch создает вызов. Выполняется после истечения отсчета.
	Dispatch func()
}

// timerFactory позволяет тестам подменять одноразовый таймер отсчета.
type timerFactory func(d time.Duration, f func()) *time.Timer

// Detector накапливает введенные цифры и по подтверждению ("=")
// сверяет хвост буфера с настроенными кодами. Совпадение в Idle
// взводит отсчет; совпадение в Armed игнорируется, повторного
// создания не бывает.
type Detector struct {
	mu sync.Mutex

	codes     []string
	countdown time.Duration
	hooks     Hooks
	logger    *logrus.Logger
	newTimer  timerFactory

	state  State
	buffer strings.Builder
	timer  *time.Timer
}

// Option настраивает Detector.
type Option func(*Detector)

// WithTimerFactory подменяет создание таймера (для тестов).
func WithTimerFactory(f timerFactory) Option {
	return func(d *Detector) { d.newTimer = f }
}

func NewDetector(codes []string, countdown time.Duration, hooks Hooks, logger *logrus.Logger, opts ...Option) *Detector {
	d := &Detector{
		codes:     codes,
		countdown: countdown,
		hooks:     hooks,
		logger:    logger,
		newTimer:  time.AfterFunc,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State возвращает текущее состояние.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Digit добавляет цифру в накопительный буфер.
// Буфер пишет только поток событий UI.
func (d *Detector) Digit(digit rune) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffer.WriteRune(digit)
}

// Confirm - видимое действие "=". Буфер очищается всегда, совпал код
// или нет: последовательность не должна накапливаться между попытками.
// Возвращает true, если триггер взвёлся.
func (d *Detector) Confirm() bool {
	d.mu.Lock()

	seq := d.buffer.String()
	d.buffer.Reset()

	if d.state != StateIdle || !d.matches(seq) {
		d.mu.Unlock()
		return false
	}

	d.state = StateArmed
	d.timer = d.newTimer(d.countdown, d.expire)
	d.mu.Unlock()

	if d.hooks.StartCapture != nil {
		d.hooks.StartCapture()
	}
	return true
}

// Cancel - видимое действие "clear". В Armed останавливает отсчет,
// обрывает запись и возвращает Idle; в остальных состояниях только
// чистит буфер. Безопасен при повторных вызовах.
func (d *Detector) Cancel() {
	d.mu.Lock()

	d.buffer.Reset()
	if d.state != StateArmed {
		d.mu.Unlock()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.state = StateIdle
	d.mu.Unlock()

	if d.hooks.AbortCapture != nil {
		d.hooks.AbortCapture()
	}
}

// expire срабатывает по истечении отсчета. Повторные срабатывания
// таймера не приводят к повторному созданию: переход защищен
// проверкой состояния.
func (d *Detector) expire() {
	d.mu.Lock()
	if d.state != StateArmed {
		d.mu.Unlock()
		return
	}
	d.state = StateDispatching
	d.timer = nil
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Debug("Trigger countdown expired, dispatching")
	}
	if d.hooks.Dispatch != nil {
		d.hooks.Dispatch()
	}

	// Захват завершен, создание запущено - нейтральный возврат в Idle.
	d.mu.Lock()
	d.state = StateIdle
	d.mu.Unlock()
}

// matches сверяет хвост последовательности с настроенными кодами
func (d *Detector) matches(seq string) bool {
	for _, code := range d.codes {
		if code != "" && strings.HasSuffix(seq, code) {
			return true
		}
	}
	return false
}
