// Package eventbus 实现命名事件总线
package eventbus

import (
	"sync"
	"unsafe"

	"github.com/dep2p/go-meshlink/pkg/interfaces"
	"github.com/dep2p/go-meshlink/pkg/lib/log"
	"github.com/dep2p/go-meshlink/pkg/types"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
//
// 按注册顺序同步投递命名事件：
//   - 同一次 Emit 内的处理器按注册顺序依次调用
//   - 处理器 panic 被隔离（恢复并记录日志），不影响后续处理器，
//     也不向发射方传播
//   - 跨事件之间没有顺序保证
//
// 处理器按函数标识去重：同一个函数引用重复注册只投递一次。
type Bus struct {
	mu sync.RWMutex

	// nodes 事件种类到处理器列表的映射
	nodes map[types.EventKind]*node
}

// node 单个事件种类的处理器列表（保持注册顺序）
type node struct {
	entries []entry
}

// entry 一个已注册的处理器
type entry struct {
	// key 函数标识（用于去重和移除）
	key uintptr

	// fn 处理函数
	fn interfaces.EventHandler
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[types.EventKind]*node),
	}
}

// ============================================================================
// 注册与注销
// ============================================================================

// On 注册事件处理器
//
// 同一个函数引用对同一事件的重复注册是幂等的（不会双重投递）。
func (b *Bus) On(kind types.EventKind, handler interfaces.EventHandler) {
	if handler == nil {
		return
	}

	b.onEntry(kind, entry{key: handlerKey(handler), fn: handler})
}

// onEntry 追加一个处理器条目（按标识去重，保持注册顺序）
func (b *Bus) onEntry(kind types.EventKind, e entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[kind]
	if !ok {
		n = &node{}
		b.nodes[kind] = n
	}

	for _, existing := range n.entries {
		if existing.key == e.key {
			return
		}
	}

	n.entries = append(n.entries, e)
}

// Off 移除事件处理器
//
// 处理器不存在时为空操作。
func (b *Bus) Off(kind types.EventKind, handler interfaces.EventHandler) {
	if handler == nil {
		return
	}
	b.offKey(kind, handlerKey(handler))
}

// Once 注册一次性事件处理器
//
// 首次触发后自动注销，再次发射不会投递。
// 注册标识取自包装闭包自身，一次性处理器彼此之间不去重。
func (b *Bus) Once(kind types.EventKind, handler interfaces.EventHandler) {
	if handler == nil {
		return
	}

	var key uintptr
	var once sync.Once
	wrapper := func(evt types.Event) {
		once.Do(func() {
			b.offKey(kind, key)
			handler(evt)
		})
	}
	key = handlerKey(wrapper)

	b.onEntry(kind, entry{key: key, fn: wrapper})
}

// ============================================================================
// 发射
// ============================================================================

// Emit 发射事件
//
// 同步调用该事件当前注册的所有处理器。
// 单个处理器 panic 不会阻止同一次发射中后续处理器的投递。
func (b *Bus) Emit(evt types.Event) {
	b.mu.RLock()
	n, ok := b.nodes[evt.Kind]
	var snapshot []entry
	if ok {
		// 复制切片，避免处理器内再注册/注销时与迭代冲突
		snapshot = make([]entry, len(n.entries))
		copy(snapshot, n.entries)
	}
	b.mu.RUnlock()

	for _, e := range snapshot {
		b.invoke(evt, e.fn)
	}
}

// invoke 调用单个处理器并隔离 panic
func (b *Bus) invoke(evt types.Event, fn interfaces.EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("事件处理器 panic",
				"kind", evt.Kind,
				"panic", r)
		}
	}()

	fn(evt)
}

// ============================================================================
// 内部方法
// ============================================================================

// offKey 按函数标识移除处理器
func (b *Bus) offKey(kind types.EventKind, key uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[kind]
	if !ok {
		return
	}

	for i, e := range n.entries {
		if e.key == key {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			break
		}
	}

	if len(n.entries) == 0 {
		delete(b.nodes, kind)
	}
}

// handlerKey 返回处理函数的标识
//
// 取 funcval 指针而非代码指针：同一构造函数生成的不同闭包
// 实例共享代码指针，但每个实例的 funcval 分配是独立的，
// 因此同一个函数引用标识稳定，不同的闭包实例视为不同的
// 处理器。entry 持有 fn 引用，funcval 在注册期间不会被回收。
func handlerKey(handler interfaces.EventHandler) uintptr {
	return uintptr(*(*unsafe.Pointer)(unsafe.Pointer(&handler)))
}
